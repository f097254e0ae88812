package optimistic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slot is a trivially observable piece of local state for the tests.
type slot struct {
	value int
}

func entryFor(s *slot, applied, prev int) Entry {
	return Entry{
		Slot:    "test",
		Applied: applied,
		Current: func() (interface{}, bool) { return s.value, true },
		Restore: func() { s.value = prev },
	}
}

func TestDoConfirmsOnSuccess(t *testing.T) {
	s := &slot{value: 100}
	confirmed := 0

	err := NewRunner().Do(context.Background(), Command{
		Name: "spend",
		Apply: func() []Entry {
			prev := s.value
			s.value = 70
			return []Entry{entryFor(s, 70, prev)}
		},
		Request: func(ctx context.Context) (interface{}, error) { return 68, nil },
		Confirm: func(result interface{}) {
			confirmed++
			s.value = result.(int)
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, confirmed)
	// Server value wins over the speculative one.
	assert.Equal(t, 68, s.value)
}

func TestDoRevertsOnRequestFailure(t *testing.T) {
	s := &slot{value: 100}
	wantErr := errors.New("rejected")

	err := NewRunner().Do(context.Background(), Command{
		Name: "spend",
		Apply: func() []Entry {
			prev := s.value
			s.value = 70
			return []Entry{entryFor(s, 70, prev)}
		},
		Request: func(ctx context.Context) (interface{}, error) { return nil, wantErr },
	})

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 100, s.value)
}

func TestRevertSkipsSlotMovedByLaterMutation(t *testing.T) {
	s := &slot{value: 100}
	release := make(chan struct{})
	done := make(chan error, 1)

	runner := NewRunner()
	go func() {
		done <- runner.Do(context.Background(), Command{
			Name: "first",
			Apply: func() []Entry {
				prev := s.value
				s.value = 70
				return []Entry{entryFor(s, 70, prev)}
			},
			Request: func(ctx context.Context) (interface{}, error) {
				<-release
				return nil, errors.New("rejected")
			},
		})
	}()

	// A second mutation lands on the same slot while the first request is
	// in flight and its server response confirms a new value.
	err := runner.Do(context.Background(), Command{
		Name: "second",
		Apply: func() []Entry {
			prev := s.value
			s.value = 40
			return []Entry{entryFor(s, 40, prev)}
		},
		Request: func(ctx context.Context) (interface{}, error) { return 40, nil },
		Confirm: func(result interface{}) { s.value = result.(int) },
	})
	require.NoError(t, err)

	close(release)
	require.Error(t, <-done)

	// The first mutation's revert must not clobber the confirmed 40: the
	// live value no longer equals what the first mutation applied.
	assert.Equal(t, 40, s.value)
}

func TestRevertRestoresOnlyUntouchedEntries(t *testing.T) {
	a := &slot{value: 1}
	b := &slot{value: 10}

	err := NewRunner().Do(context.Background(), Command{
		Name: "pair",
		Apply: func() []Entry {
			prevA, prevB := a.value, b.value
			a.value, b.value = 2, 20
			// Slot b moves again before the request fails.
			b.value = 30
			return []Entry{entryFor(a, 2, prevA), entryFor(b, 20, prevB)}
		},
		Request: func(ctx context.Context) (interface{}, error) { return nil, errors.New("rejected") },
	})

	require.Error(t, err)
	assert.Equal(t, 1, a.value)
	assert.Equal(t, 30, b.value)
}

func TestRevertSkipsVanishedSlots(t *testing.T) {
	restored := false

	err := NewRunner().Do(context.Background(), Command{
		Name: "gone",
		Apply: func() []Entry {
			return []Entry{{
				Slot:    "gone",
				Applied: 1,
				Current: func() (interface{}, bool) { return nil, false },
				Restore: func() { restored = true },
			}}
		},
		Request: func(ctx context.Context) (interface{}, error) { return nil, errors.New("rejected") },
	})

	require.Error(t, err)
	assert.False(t, restored)
}
