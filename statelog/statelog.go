// Package statelog persists a snapshot of the full simulation state after
// every state-affecting step. Sinks are called while the caller holds the
// segment mutex, so the sequence of saved snapshots is the true order of
// state transitions. No sink blocks on a semaphore.
package statelog

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"

	"github.com/DistCompiler/pgo/restaurant/shm"
)

// Sink receives snapshots of the full state.
type Sink interface {
	SaveState(st *shm.FullState) error
}

// Snapshot is a value copy of the loggable part of a FullState.
type Snapshot struct {
	Seq uint64

	ChefStat         int
	WaiterStat       int
	ReceptionistStat int
	GroupStat        []int

	GroupsWaiting int
	AssignedTable []int
}

// Capture copies the loggable fields of st.
func Capture(st *shm.FullState) Snapshot {
	return Snapshot{
		ChefStat:         st.St.ChefStat,
		WaiterStat:       st.St.WaiterStat,
		ReceptionistStat: st.St.ReceptionistStat,
		GroupStat:        append([]int(nil), st.St.GroupStat...),
		GroupsWaiting:    st.GroupsWaiting,
		AssignedTable:    append([]int(nil), st.AssignedTable...),
	}
}

func (s Snapshot) String() string {
	return FormatLine(s)
}

// Equal compares the state of two snapshots, ignoring Seq.
func (s Snapshot) Equal(other Snapshot) bool {
	return s.ChefStat == other.ChefStat &&
		s.WaiterStat == other.WaiterStat &&
		s.ReceptionistStat == other.ReceptionistStat &&
		s.GroupsWaiting == other.GroupsWaiting &&
		intsEqual(s.GroupStat, other.GroupStat) &&
		intsEqual(s.AssignedTable, other.AssignedTable)
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type multiSink struct {
	sinks []Sink
}

// Multi fans every snapshot out to each of sinks, in order. A failing sink
// does not stop the others from receiving the snapshot.
func Multi(sinks ...Sink) Sink {
	return &multiSink{sinks: sinks}
}

func (m *multiSink) SaveState(st *shm.FullState) (err error) {
	for _, sink := range m.sinks {
		err = multierr.Append(err, sink.SaveState(st))
	}
	return
}

// Close closes every sink that is an io.Closer.
func (m *multiSink) Close() (err error) {
	for _, sink := range m.sinks {
		if closer, ok := sink.(io.Closer); ok {
			err = multierr.Append(err, closer.Close())
		}
	}
	return
}

// Discard drops every snapshot.
var Discard Sink = discard{}

type discard struct{}

func (discard) SaveState(*shm.FullState) error { return nil }

// sequencer stamps snapshots with consecutive numbers starting at 1.
type sequencer struct {
	lock sync.Mutex
	next uint64
}

func (seq *sequencer) stamp(s *Snapshot) {
	seq.lock.Lock()
	defer seq.lock.Unlock()
	seq.next++
	s.Seq = seq.next
}

func unexpectedWidth(what string, expected, actual int) error {
	return fmt.Errorf("%s: expected %d entries, got %d", what, expected, actual)
}
