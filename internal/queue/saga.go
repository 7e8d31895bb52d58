package queue

import (
	"context"

	"github.com/robertarktes/payment-fulfillment/internal/observability"
)

// step is one stage of entry processing paired with the action that undoes
// it. There is no transaction spanning the fund ledger, the inventory store
// and the order ledger, so the pairing is the only rollback mechanism.
type step struct {
	name       string
	run        func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

// runSaga executes steps in order. On failure it compensates in reverse,
// starting with the failing step itself so a step that failed partway
// through can undo its partial progress; compensations guard against
// nothing having happened yet. Compensation errors are reported through
// onCompensationError and never returned: a broken rollback must not halt
// processing of other entries.
func runSaga(ctx context.Context, steps []step, onCompensationError func(stepName string, err error)) error {
	for i, s := range steps {
		if err := s.run(ctx); err != nil {
			for j := i; j >= 0; j-- {
				prev := steps[j]
				if prev.compensate == nil {
					continue
				}
				if cerr := prev.compensate(ctx); cerr != nil {
					observability.CompensationFailures.Inc()
					onCompensationError(prev.name, cerr)
				}
			}
			return err
		}
	}
	return nil
}
