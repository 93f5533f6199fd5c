// Package archetypes implements the collaborators of the receptionist: the
// groups, the waiter and the chef. Each runs against its own attachment to
// the shared segment and snapshots every status change it makes.
package archetypes

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/DistCompiler/pgo/restaurant/semset"
	"github.com/DistCompiler/pgo/restaurant/shm"
	"github.com/DistCompiler/pgo/restaurant/statelog"
	"github.com/DistCompiler/pgo/restaurant/verify"
)

type config struct {
	sink    statelog.Sink
	logger  *log.Logger
	debug   bool
	history *verify.History

	startTime time.Duration
	eatTime   time.Duration
	cookTime  time.Duration
}

type ConfigFn func(cfg *config)

func SetSink(sink statelog.Sink) ConfigFn {
	return func(cfg *config) {
		cfg.sink = sink
	}
}

func SetLogger(logger *log.Logger) ConfigFn {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

func SetDebug(debug bool) ConfigFn {
	return func(cfg *config) {
		cfg.debug = debug
	}
}

// SetHistory makes groups record their table and bill requests into history.
func SetHistory(history *verify.History) ConfigFn {
	return func(cfg *config) {
		cfg.history = history
	}
}

// SetStartTime delays a group's arrival.
func SetStartTime(d time.Duration) ConfigFn {
	return func(cfg *config) {
		cfg.startTime = d
	}
}

func SetEatTime(d time.Duration) ConfigFn {
	return func(cfg *config) {
		cfg.eatTime = d
	}
}

func SetCookTime(d time.Duration) ConfigFn {
	return func(cfg *config) {
		cfg.cookTime = d
	}
}

// archetype is the common plumbing of one collaborator.
type archetype struct {
	config
	tag     string
	att     *shm.Attachment
	handles shm.Handles
}

func newArchetype(att *shm.Attachment, name, tag string, configFns []ConfigFn) archetype {
	a := archetype{
		config: config{
			sink:   statelog.Discard,
			logger: log.New(os.Stderr, "["+name+"] ", log.LstdFlags),
		},
		tag:     tag,
		att:     att,
		handles: att.Handles(),
	}
	for _, configFn := range configFns {
		configFn(&a.config)
	}
	return a
}

func (a *archetype) debugf(format string, args ...any) {
	if a.debug {
		a.logger.Printf(format, args...)
	}
}

// critical runs fn under the segment mutex and snapshots the state it
// leaves. If anything fails, the region is left locked.
func (a *archetype) critical(ctx context.Context, fn func(st *shm.FullState) error) error {
	g, err := a.att.Lock(ctx)
	if err != nil {
		return fmt.Errorf("error on the down operation for semaphore access (%s): %w", a.tag, err)
	}
	st := g.State()
	if err := fn(st); err != nil {
		return err
	}
	if err := a.sink.SaveState(st); err != nil {
		return fmt.Errorf("error on saving the state (%s): %w", a.tag, err)
	}
	if err := g.Unlock(); err != nil {
		return fmt.Errorf("error on the up operation for semaphore access (%s): %w", a.tag, err)
	}
	return nil
}

func (a *archetype) down(ctx context.Context, h semset.Handle) error {
	if err := a.att.Down(ctx, h); err != nil {
		return fmt.Errorf("error on the down operation for %v (%s): %w", h, a.tag, err)
	}
	return nil
}

func (a *archetype) up(h semset.Handle) error {
	if err := a.att.Up(h); err != nil {
		return fmt.Errorf("error on the up operation for %v (%s): %w", h, a.tag, err)
	}
	return nil
}

// sleep waits for d, or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
