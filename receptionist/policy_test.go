package receptionist

import (
	"testing"

	"github.com/DistCompiler/pgo/restaurant/shm"
)

func stateWith(nTables int, assigned ...int) *shm.FullState {
	return &shm.FullState{
		NGroups:       len(assigned),
		NTables:       nTables,
		AssignedTable: assigned,
	}
}

func TestChooseTable(t *testing.T) {
	const x = shm.None
	tests := []struct {
		name     string
		st       *shm.FullState
		expected int
	}{
		{"all free", stateWith(2, x, x, x), 0},
		{"first taken", stateWith(2, 0, x, x), 1},
		{"gap below", stateWith(3, x, 1, 2), 0},
		{"order of groups is irrelevant", stateWith(3, 2, 0, x), 1},
		{"all taken", stateWith(2, 1, x, 0), shm.None},
		{"single table taken", stateWith(1, x, 0), shm.None},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := chooseTable(test.st); got != test.expected {
				t.Errorf("expected table %d, got %d", test.expected, got)
			}
			// same inputs, same answer
			if got := chooseTable(test.st); got != test.expected {
				t.Errorf("second call: expected table %d, got %d", test.expected, got)
			}
		})
	}
}

func TestNextWaitingGroup(t *testing.T) {
	tests := []struct {
		name          string
		groupsWaiting int
		ledger        ledger
		expected      int
	}{
		{"nobody waiting", 0, ledger{seated, finished, notYetArrived}, shm.None},
		{"lowest id wins", 2, ledger{seated, finished, waiting, waiting}, 2},
		{"arrival order is ignored", 2, ledger{waiting, seated, waiting}, 0},
		{"counter short-circuits", 0, ledger{waiting}, shm.None},
		{"counter without waiting entries", 1, ledger{seated, finished}, shm.None},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			st := &shm.FullState{GroupsWaiting: test.groupsWaiting}
			if got := nextWaitingGroup(st, test.ledger); got != test.expected {
				t.Errorf("expected group %d, got %d", test.expected, got)
			}
		})
	}
}

func TestLedgerCount(t *testing.T) {
	l := ledger{waiting, seated, waiting, finished}
	if l.count(waiting) != 2 || l.count(seated) != 1 || l.count(notYetArrived) != 0 {
		t.Errorf("unexpected counts for %v", l)
	}
}
