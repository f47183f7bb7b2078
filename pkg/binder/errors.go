package binder

import "errors"

var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrFailedToParseJSON    = errors.New("failed to parse JSON request body")
	ErrMissingContentType   = errors.New("missing content type")

	// ErrBinderNotApplicable tells the caller to skip this binder and keep
	// the zero value for the target.
	ErrBinderNotApplicable = errors.New("binder not applicable to this request")
)
