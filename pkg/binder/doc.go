// Package binder decodes HTTP request bodies into typed request structs.
//
// Binders have the signature func(*http.Request, any) error and are plugged
// into handler.Wrap through handler.WithBinders. A binder that has nothing to
// do for a request returns ErrBinderNotApplicable and the target keeps its
// zero value.
package binder
