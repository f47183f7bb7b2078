package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/coachlatam/coachlatam/svc/subscription"
)

// sagaOperator is the operator surface of subscription.Service.
type sagaOperator interface {
	ListSagas(ctx context.Context, state subscription.SagaState, limit int) ([]subscription.Saga, error)
	ResolveSaga(ctx context.Context, id uuid.UUID, note string) (*subscription.Saga, error)
}

func newSagasCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sagas",
		Short: "Inspect and resolve billing sagas",
		Long: `Billing sagas record every activation and cancellation. Sagas in the
critical state mean the database and the payment provider disagree and must
be reconciled by hand before they are resolved.`,
	}

	var (
		state string
		limit int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent sagas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			op, done, err := a.operator(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			sagas, err := op.ListSagas(cmd.Context(), subscription.SagaState(state), limit)
			if err != nil {
				return err
			}
			printSagas(cmd.OutOrStdout(), sagas)
			return nil
		},
	}
	list.Flags().StringVar(&state, "state", string(subscription.SagaCritical), "filter by state, empty for all")
	list.Flags().IntVar(&limit, "limit", 50, "maximum number of sagas")

	var note string
	resolve := &cobra.Command{
		Use:   "resolve <saga-id>",
		Short: "Mark a critical saga as reconciled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid saga id %q: %w", args[0], err)
			}

			op, done, err := a.operator(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			saga, err := op.ResolveSaga(cmd.Context(), id, note)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saga %s resolved at %s\n", saga.ID, saga.ResolvedAt.Format(time.RFC3339))
			return nil
		},
	}
	resolve.Flags().StringVar(&note, "note", "", "how the inconsistency was reconciled")
	_ = resolve.MarkFlagRequired("note")

	cmd.AddCommand(list, resolve)
	return cmd
}

// operator returns the saga operator and a function releasing its connections.
func (a *app) operator(ctx context.Context) (sagaOperator, func(), error) {
	if a.newOperator != nil {
		return a.newOperator(ctx)
	}

	pool, _, err := a.connectPostgres(ctx)
	if err != nil {
		return nil, nil, err
	}
	svcs, err := a.buildServices(pool, nil)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return svcs.subscriptions, pool.Close, nil
}

func printSagas(w io.Writer, sagas []subscription.Saga) {
	if len(sagas) == 0 {
		fmt.Fprintln(w, "No sagas found.")
		return
	}
	for _, s := range sagas {
		fmt.Fprintf(w, "%s  %-12s  %-12s  %-6s  user=%s  ext=%s  compensation=%s  %s\n",
			s.ID, s.Kind, s.State, s.Provider, s.UserID, s.ExternalSubscriptionID,
			s.Compensation, s.CreatedAt.Format(time.RFC3339),
		)
		if s.LastError != "" {
			fmt.Fprintf(w, "    error: %s\n", s.LastError)
		}
	}
}
