package statelog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/DistCompiler/pgo/restaurant/shm"
)

// Event is one line of the JSON event file.
type Event struct {
	Seq              uint64 `json:"seq"`
	ChefStat         int    `json:"chef"`
	WaiterStat       int    `json:"waiter"`
	ReceptionistStat int    `json:"receptionist"`
	GroupStat        []int  `json:"groups"`
	GroupsWaiting    int    `json:"groupsWaiting"`
	AssignedTable    []int  `json:"assignedTable"`
}

func eventOf(s Snapshot) Event {
	return Event{
		Seq:              s.Seq,
		ChefStat:         s.ChefStat,
		WaiterStat:       s.WaiterStat,
		ReceptionistStat: s.ReceptionistStat,
		GroupStat:        s.GroupStat,
		GroupsWaiting:    s.GroupsWaiting,
		AssignedTable:    s.AssignedTable,
	}
}

// Snapshot converts the event back into the snapshot it was recorded from.
func (e Event) Snapshot() Snapshot {
	return Snapshot{
		Seq:              e.Seq,
		ChefStat:         e.ChefStat,
		WaiterStat:       e.WaiterStat,
		ReceptionistStat: e.ReceptionistStat,
		GroupStat:        e.GroupStat,
		GroupsWaiting:    e.GroupsWaiting,
		AssignedTable:    e.AssignedTable,
	}
}

// Recorder writes one JSON object per snapshot.
type Recorder struct {
	lock    sync.Mutex
	seq     sequencer
	closer  io.Closer
	encoder *json.Encoder
}

func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{encoder: json.NewEncoder(w)}
}

// CreateRecorder truncates filename and records events into it.
func CreateRecorder(filename string) (*Recorder, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("error on opening event file: %w", err)
	}
	recorder := NewRecorder(file)
	recorder.closer = file
	return recorder, nil
}

func (recorder *Recorder) SaveState(st *shm.FullState) error {
	s := Capture(st)
	recorder.seq.stamp(&s)

	recorder.lock.Lock()
	defer recorder.lock.Unlock()
	if err := recorder.encoder.Encode(eventOf(s)); err != nil {
		return fmt.Errorf("error on recording event %d: %w", s.Seq, err)
	}
	return nil
}

func (recorder *Recorder) Close() error {
	if recorder.closer == nil {
		return nil
	}
	return recorder.closer.Close()
}

// ReadEvents decodes an event file written by a Recorder.
func ReadEvents(r io.Reader) ([]Snapshot, error) {
	var snaps []Snapshot
	decoder := json.NewDecoder(r)
	for {
		var e Event
		err := decoder.Decode(&e)
		if err == io.EOF {
			return snaps, nil
		}
		if err != nil {
			return snaps, fmt.Errorf("error on reading event %d: %w", len(snaps)+1, err)
		}
		snaps = append(snaps, e.Snapshot())
	}
}
