// Package semset provides a fixed, pre-allocated set of counting semaphores
// addressed by stable integer handles, in the manner of a System V
// semaphore set.
package semset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// MaxValue is the ceiling of any single semaphore in a set.
const MaxValue = 1 << 20

var (
	// ErrBadHandle is returned when a handle does not address a semaphore of the set.
	ErrBadHandle = errors.New("semaphore handle out of range")
	// ErrClosed is returned by every operation on a removed set, including Down calls that were blocked at removal time.
	ErrClosed = errors.New("semaphore set removed")
	// ErrOverflow is returned by Up when a semaphore is already at MaxValue.
	ErrOverflow = errors.New("semaphore value overflow")
)

// Handle addresses one semaphore inside a Set.
type Handle int

func (h Handle) String() string {
	return fmt.Sprintf("sem#%d", int(h))
}

type sem struct {
	w     *semaphore.Weighted
	value atomic.Int64
}

// Set is a fixed collection of counting semaphores. All semaphores start at 0.
type Set struct {
	sems []*sem

	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
}

// NewSet creates a set of n semaphores, each initialised to 0.
func NewSet(n int) *Set {
	if n < 0 {
		panic(fmt.Errorf("negative semaphore set size %d", n))
	}
	set := &Set{
		sems: make([]*sem, n),
		done: make(chan struct{}),
	}
	for i := range set.sems {
		w := semaphore.NewWeighted(MaxValue)
		// a Weighted semaphore with every unit held models a counting semaphore at 0
		if !w.TryAcquire(MaxValue) {
			panic("fresh weighted semaphore refused full acquire")
		}
		set.sems[i] = &sem{w: w}
	}
	return set
}

// Len returns the number of semaphores in the set.
func (set *Set) Len() int {
	return len(set.sems)
}

func (set *Set) get(h Handle) (*sem, error) {
	if set.closed.Load() {
		return nil, ErrClosed
	}
	if int(h) < 0 || int(h) >= len(set.sems) {
		return nil, fmt.Errorf("%w: %v (set has %d)", ErrBadHandle, h, len(set.sems))
	}
	return set.sems[h], nil
}

// Init raises semaphore h by value. It is meant for initialisation, before
// the set is shared.
func (set *Set) Init(h Handle, value int) error {
	for i := 0; i < value; i++ {
		if err := set.Up(h); err != nil {
			return err
		}
	}
	return nil
}

// Down decrements semaphore h, blocking while its value is 0. It fails with
// ErrClosed if the set is removed while waiting, or with the context's error
// if ctx ends first.
func (set *Set) Down(ctx context.Context, h Handle) error {
	s, err := set.get(h)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-set.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.w.Acquire(ctx, 1); err != nil {
		if set.closed.Load() {
			return ErrClosed
		}
		return err
	}
	s.value.Add(-1)
	return nil
}

// Up increments semaphore h, waking the longest-waiting Down if any.
func (set *Set) Up(h Handle) error {
	s, err := set.get(h)
	if err != nil {
		return err
	}
	if s.value.Add(1) > MaxValue {
		s.value.Add(-1)
		return fmt.Errorf("%w: %v", ErrOverflow, h)
	}
	s.w.Release(1)
	return nil
}

// Value reports the current value of semaphore h. It is only a hint while
// other goroutines operate on h.
func (set *Set) Value(h Handle) (int, error) {
	s, err := set.get(h)
	if err != nil {
		return 0, err
	}
	return int(s.value.Load()), nil
}

// Close removes the set. Blocked Down calls return ErrClosed. Closing twice
// is a no-op.
func (set *Set) Close() error {
	set.closeOnce.Do(func() {
		set.closed.Store(true)
		close(set.done)
	})
	return nil
}
