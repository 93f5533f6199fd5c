// Package bootstrap is the restaurant's initializer: it creates the shared
// segment, opens the state sinks, runs every archetype against its own
// attachment and tears everything down again.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/anishathalye/porcupine"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/DistCompiler/pgo/restaurant/archetypes"
	"github.com/DistCompiler/pgo/restaurant/configs"
	"github.com/DistCompiler/pgo/restaurant/receptionist"
	"github.com/DistCompiler/pgo/restaurant/shm"
	"github.com/DistCompiler/pgo/restaurant/statelog"
	"github.com/DistCompiler/pgo/restaurant/verify"
)

type Restaurant struct {
	config configs.Root

	reg       *shm.Registry
	logger    *log.Logger
	logOutput io.Writer

	snapshots *statelog.History
	ops       *verify.History
}

type ConfigFn func(r *Restaurant)

// SetRegistry runs the restaurant in reg instead of a private registry.
func SetRegistry(reg *shm.Registry) ConfigFn {
	return func(r *Restaurant) {
		r.reg = reg
	}
}

func SetLogger(logger *log.Logger) ConfigFn {
	return func(r *Restaurant) {
		r.logger = logger
	}
}

// SetLogOutput writes the text state log to w, whatever the configured file.
func SetLogOutput(w io.Writer) ConfigFn {
	return func(r *Restaurant) {
		r.logOutput = w
	}
}

func New(c configs.Root, configFns ...ConfigFn) (*Restaurant, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	r := &Restaurant{
		config:    c,
		reg:       shm.NewRegistry(),
		logger:    log.New(os.Stderr, "[restaurant] ", log.LstdFlags),
		snapshots: statelog.NewHistory(),
		ops:       verify.NewHistory(),
	}
	for _, configFn := range configFns {
		configFn(r)
	}
	return r, nil
}

// Snapshots returns every snapshot taken so far.
func (r *Restaurant) Snapshots() []statelog.Snapshot {
	return r.snapshots.Snapshots()
}

// Operations returns the table and bill requests the groups completed.
func (r *Restaurant) Operations() []porcupine.Operation {
	return r.ops.Operations()
}

func (r *Restaurant) openSinks() (sink statelog.Sink, closeSinks func() error, err error) {
	var closers []io.Closer
	closeSinks = func() (err error) {
		for _, closer := range closers {
			err = multierr.Append(err, closer.Close())
		}
		return
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, closeSinks())
		}
	}()

	var textLog *statelog.TextLog
	if r.logOutput != nil {
		textLog, err = statelog.NewTextLog(r.logOutput, r.config.NumGroups)
	} else {
		textLog, err = statelog.CreateTextLog(r.config.LogFile, r.config.NumGroups)
	}
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, textLog)
	sinks := []statelog.Sink{textLog, r.snapshots}

	if r.config.EventFile != "" {
		recorder, err := statelog.CreateRecorder(r.config.EventFile)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, recorder)
		sinks = append(sinks, recorder)
	}
	if r.config.PersistDir != "" {
		store, err := statelog.OpenStore(r.config.PersistDir)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, store)
		sinks = append(sinks, store)
	}
	return statelog.Multi(sinks...), closeSinks, nil
}

type runner interface {
	Run(ctx context.Context) error
}

type participant struct {
	name string
	att  *shm.Attachment
	arch runner
}

func (r *Restaurant) participants(key shm.Key, sink statelog.Sink) (parts []participant, err error) {
	c := r.config
	defer func() {
		if err != nil {
			for _, part := range parts {
				err = multierr.Append(err, part.att.Detach())
			}
		}
	}()
	add := func(name string, newArch func(att *shm.Attachment) runner) error {
		att, err := r.reg.Attach(key)
		if err != nil {
			return fmt.Errorf("error on attaching %s: %w", name, err)
		}
		parts = append(parts, participant{name: name, att: att, arch: newArch(att)})
		return nil
	}

	common := []archetypes.ConfigFn{
		archetypes.SetSink(sink),
		archetypes.SetDebug(c.Debug),
	}
	if err := add("receptionist", func(att *shm.Attachment) runner {
		return receptionist.New(att, receptionist.SetSink(sink), receptionist.SetDebug(c.Debug))
	}); err != nil {
		return parts, err
	}
	if err := add("waiter", func(att *shm.Attachment) runner {
		return archetypes.NewWaiter(att, common...)
	}); err != nil {
		return parts, err
	}
	if err := add("chef", func(att *shm.Attachment) runner {
		return archetypes.NewChef(att, append(common, archetypes.SetCookTime(c.CookTime))...)
	}); err != nil {
		return parts, err
	}
	for g := 0; g < c.NumGroups; g++ {
		settings := c.Group(g)
		err := add(fmt.Sprintf("group %d", g), func(att *shm.Attachment) runner {
			return archetypes.NewGroup(att, g, append(common,
				archetypes.SetHistory(r.ops),
				archetypes.SetStartTime(settings.StartTime),
				archetypes.SetEatTime(settings.EatTime),
			)...)
		})
		if err != nil {
			return parts, err
		}
	}
	return parts, nil
}

// Run creates the segment, runs the whole simulation and checks the
// recorded run. The first archetype to fail cancels the others; the segment
// is destroyed before Run returns.
func (r *Restaurant) Run(ctx context.Context) (err error) {
	c := r.config
	key := shm.KeyOf(c.Key)
	if err := r.reg.Create(key, c.NumGroups, c.NumTables); err != nil {
		return fmt.Errorf("error on creating the shared segment %v: %w", key, err)
	}
	defer func() {
		err = multierr.Append(err, r.reg.Destroy(key))
	}()

	sink, closeSinks, err := r.openSinks()
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, closeSinks())
	}()

	parts, err := r.participants(key, sink)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, part := range parts {
		part := part
		group.Go(func() (err error) {
			defer func() {
				err = multierr.Append(err, part.att.Detach())
			}()
			if err := part.arch.Run(groupCtx); err != nil {
				r.logger.Printf("%s failed: %v", part.name, err)
				return fmt.Errorf("%s: %w", part.name, err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	r.logger.Printf("served %d groups at %d tables, %d snapshots", c.NumGroups, c.NumTables, r.snapshots.Len())

	if err := verify.CheckSnapshots(c.NumTables, r.snapshots.Snapshots()); err != nil {
		return err
	}
	return verify.CheckHistory(c.NumTables, r.ops.Operations(), c.HistoryFile)
}
