package receptionist

import "github.com/DistCompiler/pgo/restaurant/shm"

// phase is the receptionist's private record of one group's lifecycle.
type phase int

const (
	notYetArrived phase = iota
	waiting
	seated
	finished
)

func (p phase) String() string {
	switch p {
	case notYetArrived:
		return "NOT_YET_ARRIVED"
	case waiting:
		return "WAITING"
	case seated:
		return "SEATED"
	case finished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// ledger is owned by the receptionist alone. Outside the critical region the
// number of waiting entries equals FullState.GroupsWaiting.
type ledger []phase

func (l ledger) count(p phase) int {
	n := 0
	for _, q := range l {
		if q == p {
			n++
		}
	}
	return n
}

// chooseTable returns the lowest-indexed table no group is assigned to, or
// shm.None if every table is occupied. Must be called under the mutex.
func chooseTable(st *shm.FullState) int {
	for table := 0; table < st.NTables; table++ {
		if st.TableOccupant(table) == shm.None {
			return table
		}
	}
	return shm.None
}

// nextWaitingGroup returns the lowest-id waiting group, or shm.None if none
// is waiting. Must be called under the mutex.
func nextWaitingGroup(st *shm.FullState, l ledger) int {
	if st.GroupsWaiting == 0 {
		return shm.None
	}
	for g, p := range l {
		if p == waiting {
			return g
		}
	}
	return shm.None
}
