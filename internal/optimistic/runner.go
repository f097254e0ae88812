// Package optimistic implements the speculative command protocol used for
// user-initiated state changes: snapshot, apply immediately, then confirm
// against the server or revert. The revert is compare-and-revert, never a
// blind overwrite, so overlapping mutations on the same entity cannot erase
// each other's confirmed values.
package optimistic

import (
	"context"
	"reflect"

	"brilho/internal/observability"
)

// Entry is one piece of local state touched by a mutation. Applied holds the
// speculative value written during Apply; Current reads the live value at
// revert time and Restore puts the pre-mutation value back.
type Entry struct {
	Slot    string
	Applied interface{}
	Current func() (interface{}, bool)
	Restore func()
}

// Command describes one optimistic mutation.
//
// Apply performs the speculative local write and returns the snapshot
// entries it touched. Request issues the remote call and returns the
// server's authoritative payload. Confirm merges that payload over the
// speculative state (server wins on conflict).
type Command struct {
	Name    string
	Apply   func() []Entry
	Request func(ctx context.Context) (interface{}, error)
	Confirm func(result interface{})
}

// Runner executes optimistic commands. One Runner is shared by every call
// site so the revert race guard lives in exactly one place.
type Runner struct {
	log *observability.MutationLogger
}

// NewRunner returns a Runner.
func NewRunner() *Runner {
	return &Runner{log: observability.NewMutationLogger()}
}

// Do runs the three-phase protocol: snapshot+apply, request, then
// confirm-or-revert. It returns the request error on failure so the caller
// can surface a toast; local state is already restored by then.
//
// Revert law: an entry is rolled back only if the live value still equals
// the value this mutation last set. If a later mutation has already moved
// the slot (speculatively or confirmed), the revert must not touch it.
func (r *Runner) Do(ctx context.Context, cmd Command) error {
	ctx = observability.WithCorrelationID(ctx, observability.GenerateCorrelationID())

	entries := cmd.Apply()
	r.log.LogApply(ctx, cmd.Name, len(entries))

	result, err := cmd.Request(ctx)
	if err != nil {
		reverted, skipped := r.revert(entries)
		r.log.LogRevert(ctx, cmd.Name, reverted, skipped, err)
		observability.MutationsTotal.WithLabelValues(cmd.Name, "reverted").Inc()
		if skipped > 0 {
			observability.MutationsTotal.WithLabelValues(cmd.Name, "conflict_skipped").Inc()
		}
		return err
	}

	if cmd.Confirm != nil {
		cmd.Confirm(result)
	}
	r.log.LogConfirm(ctx, cmd.Name)
	observability.MutationsTotal.WithLabelValues(cmd.Name, "confirmed").Inc()
	return nil
}

func (r *Runner) revert(entries []Entry) (reverted, skipped int) {
	for _, e := range entries {
		cur, ok := e.Current()
		if !ok || !reflect.DeepEqual(cur, e.Applied) {
			// Someone else moved this slot since we wrote it; their
			// value (pending or confirmed) outranks our stale snapshot.
			skipped++
			continue
		}
		e.Restore()
		reverted++
	}
	return reverted, skipped
}
