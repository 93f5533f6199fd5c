package statelog

import (
	"sync/atomic"

	"github.com/benbjohnson/immutable"

	"github.com/DistCompiler/pgo/restaurant/shm"
)

// History keeps every snapshot in memory. Writers are already serialised by
// the segment mutex; readers take a persistent list and never block them.
type History struct {
	seq  sequencer
	list atomic.Pointer[immutable.List[Snapshot]]
}

func NewHistory() *History {
	h := &History{}
	h.list.Store(immutable.NewList[Snapshot]())
	return h
}

func (h *History) SaveState(st *shm.FullState) error {
	s := Capture(st)
	h.seq.stamp(&s)
	for {
		old := h.list.Load()
		if h.list.CompareAndSwap(old, old.Append(s)) {
			return nil
		}
	}
}

// Len is the number of snapshots saved so far.
func (h *History) Len() int {
	return h.list.Load().Len()
}

// Snapshots returns the snapshots saved so far, oldest first.
func (h *History) Snapshots() []Snapshot {
	list := h.list.Load()
	out := make([]Snapshot, 0, list.Len())
	itr := list.Iterator()
	for !itr.Done() {
		_, s := itr.Next()
		out = append(out, s)
	}
	return out
}
