// Package shm holds the shared state of a restaurant simulation: a segment
// that archetypes attach to, carrying the full state and the handles of the
// semaphores that coordinate access to it.
package shm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/segmentio/fasthash/fnv1a"
	"go.uber.org/multierr"

	"github.com/DistCompiler/pgo/restaurant/semset"
)

var (
	ErrExists        = errors.New("segment already exists")
	ErrNotFound      = errors.New("no segment for key")
	ErrDetached      = errors.New("segment detached")
	ErrBadDimensions = errors.New("bad segment dimensions")
)

// Key names a segment and its semaphore set, like a System V IPC key.
type Key uint32

// KeyOf derives a key from a name, the way ftok derives one from a path.
func KeyOf(name string) Key {
	return Key(fnv1a.HashString32(name))
}

func (k Key) String() string {
	return fmt.Sprintf("0x%08x", uint32(k))
}

// Handles are the stable semaphore handles of a segment.
type Handles struct {
	Mutex semset.Handle

	ReceptionistReq             semset.Handle
	ReceptionistRequestPossible semset.Handle
	ReceptionistAck             []semset.Handle // per group

	WaiterReq             semset.Handle
	WaiterRequestPossible semset.Handle
	WaiterAck             []semset.Handle // per group

	WaitOrder semset.Handle

	WaitForTable []semset.Handle // per group
	FoodArrived  []semset.Handle // per group
	TableDone    []semset.Handle // per table
}

func (h Handles) clone() Handles {
	h.ReceptionistAck = append([]semset.Handle(nil), h.ReceptionistAck...)
	h.WaiterAck = append([]semset.Handle(nil), h.WaiterAck...)
	h.WaitForTable = append([]semset.Handle(nil), h.WaitForTable...)
	h.FoodArrived = append([]semset.Handle(nil), h.FoodArrived...)
	h.TableDone = append([]semset.Handle(nil), h.TableDone...)
	return h
}

type segment struct {
	key     Key
	sems    *semset.Set
	handles Handles
	state   FullState
}

func newSegment(key Key, nGroups, nTables int) (*segment, error) {
	var next semset.Handle
	alloc := func() semset.Handle {
		h := next
		next++
		return h
	}
	allocN := func(n int) []semset.Handle {
		hs := make([]semset.Handle, n)
		for i := range hs {
			hs[i] = alloc()
		}
		return hs
	}

	handles := Handles{
		Mutex:                       alloc(),
		ReceptionistReq:             alloc(),
		ReceptionistRequestPossible: alloc(),
		ReceptionistAck:             allocN(nGroups),
		WaiterReq:                   alloc(),
		WaiterRequestPossible:       alloc(),
		WaiterAck:                   allocN(nGroups),
		WaitOrder:                   alloc(),
		WaitForTable:                allocN(nGroups),
		FoodArrived:                 allocN(nGroups),
		TableDone:                   allocN(nTables),
	}

	sems := semset.NewSet(int(next))
	// the mutex and both slot-free signals start free, everything else at 0
	for _, h := range []semset.Handle{handles.Mutex, handles.ReceptionistRequestPossible, handles.WaiterRequestPossible} {
		if err := sems.Init(h, 1); err != nil {
			return nil, err
		}
	}

	return &segment{
		key:     key,
		sems:    sems,
		handles: handles,
		state:   newFullState(nGroups, nTables),
	}, nil
}

// Registry is the namespace segments are created in and attached from.
type Registry struct {
	lock     sync.Mutex
	segments map[Key]*segment
}

func NewRegistry() *Registry {
	return &Registry{segments: make(map[Key]*segment)}
}

// Create allocates a segment and its semaphore set under key.
func (reg *Registry) Create(key Key, nGroups, nTables int) error {
	if nGroups < 1 || nGroups > MaxGroups {
		return fmt.Errorf("%w: %d groups (allowed 1..%d)", ErrBadDimensions, nGroups, MaxGroups)
	}
	if nTables < 1 || nTables > MaxTables {
		return fmt.Errorf("%w: %d tables (allowed 1..%d)", ErrBadDimensions, nTables, MaxTables)
	}

	reg.lock.Lock()
	defer reg.lock.Unlock()
	if _, ok := reg.segments[key]; ok {
		return fmt.Errorf("%w: %v", ErrExists, key)
	}
	seg, err := newSegment(key, nGroups, nTables)
	if err != nil {
		return err
	}
	reg.segments[key] = seg
	return nil
}

// Attach maps the segment under key into the caller.
func (reg *Registry) Attach(key Key) (*Attachment, error) {
	reg.lock.Lock()
	defer reg.lock.Unlock()
	seg, ok := reg.segments[key]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, key)
	}
	return &Attachment{seg: seg}, nil
}

// Destroy removes the segment under key and its semaphore set. Archetypes
// still blocked on one of its semaphores are woken with semset.ErrClosed.
func (reg *Registry) Destroy(key Key) error {
	reg.lock.Lock()
	seg, ok := reg.segments[key]
	delete(reg.segments, key)
	reg.lock.Unlock()
	if !ok {
		return fmt.Errorf("%w: %v", ErrNotFound, key)
	}
	return seg.sems.Close()
}

// Close destroys every segment still registered.
func (reg *Registry) Close() (err error) {
	reg.lock.Lock()
	keys := make([]Key, 0, len(reg.segments))
	for key := range reg.segments {
		keys = append(keys, key)
	}
	reg.lock.Unlock()
	for _, key := range keys {
		err = multierr.Append(err, reg.Destroy(key))
	}
	return
}

// Attachment is one archetype's view of a segment.
type Attachment struct {
	seg      *segment
	detached atomic.Bool
}

func (att *Attachment) check() error {
	if att.detached.Load() {
		return ErrDetached
	}
	return nil
}

// Detach unmaps the segment. Every later operation fails with ErrDetached.
func (att *Attachment) Detach() error {
	if att.detached.Swap(true) {
		return ErrDetached
	}
	return nil
}

func (att *Attachment) Key() Key {
	return att.seg.key
}

// NGroups is fixed at creation and may be read without the mutex.
func (att *Attachment) NGroups() int {
	return att.seg.state.NGroups
}

// NTables is fixed at creation and may be read without the mutex.
func (att *Attachment) NTables() int {
	return att.seg.state.NTables
}

// Handles returns a copy of the segment's semaphore handles.
func (att *Attachment) Handles() Handles {
	return att.seg.handles.clone()
}

// Down decrements semaphore h of the segment's set.
func (att *Attachment) Down(ctx context.Context, h semset.Handle) error {
	if err := att.check(); err != nil {
		return err
	}
	return att.seg.sems.Down(ctx, h)
}

// Up increments semaphore h of the segment's set.
func (att *Attachment) Up(h semset.Handle) error {
	if err := att.check(); err != nil {
		return err
	}
	return att.seg.sems.Up(h)
}

// Lock enters the critical region guarding the full state.
func (att *Attachment) Lock(ctx context.Context) (*Guard, error) {
	if err := att.Down(ctx, att.seg.handles.Mutex); err != nil {
		return nil, err
	}
	return &Guard{att: att}, nil
}

// Guard is proof of holding the segment mutex.
type Guard struct {
	att      *Attachment
	released bool
}

// State returns the full state. The pointer must not be used after Unlock.
// State panics with an error wrapping ErrDetached once the attachment the
// guard was taken from is detached.
func (g *Guard) State() *FullState {
	if g.released {
		panic("shm: full state accessed after leaving the critical region")
	}
	if err := g.att.check(); err != nil {
		panic(fmt.Errorf("shm: full state accessed through a detached attachment: %w", err))
	}
	return &g.att.seg.state
}

// Unlock leaves the critical region. On a detached attachment it fails with
// ErrDetached and the mutex stays held.
func (g *Guard) Unlock() error {
	if g.released {
		panic("shm: critical region left twice")
	}
	g.released = true
	if err := g.att.check(); err != nil {
		return err
	}
	return g.att.seg.sems.Up(g.att.seg.handles.Mutex)
}
