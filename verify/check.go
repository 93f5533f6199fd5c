package verify

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/DistCompiler/pgo/restaurant/shm"
	"github.com/DistCompiler/pgo/restaurant/statelog"
)

var ErrInvariant = errors.New("state invariant violated")

func violation(s statelog.Snapshot, format string, args ...any) error {
	return fmt.Errorf("%w: snapshot %d: %s", ErrInvariant, s.Seq, fmt.Sprintf(format, args...))
}

// CheckSnapshot checks the invariants a single snapshot must hold with
// nTables tables. Every violation found is reported.
func CheckSnapshot(nTables int, s statelog.Snapshot) (err error) {
	nGroups := len(s.GroupStat)
	if len(s.AssignedTable) != nGroups {
		return violation(s, "%d group states but %d table assignments", nGroups, len(s.AssignedTable))
	}

	if s.ChefStat < shm.WaitForOrder || s.ChefStat > shm.Rest {
		err = multierr.Append(err, violation(s, "chef state %d", s.ChefStat))
	}
	if s.WaiterStat < shm.WaitForRequest || s.WaiterStat > shm.TakeToTable {
		err = multierr.Append(err, violation(s, "waiter state %d", s.WaiterStat))
	}
	if s.ReceptionistStat < shm.WaitRequest || s.ReceptionistStat > shm.ReceivePayment {
		err = multierr.Append(err, violation(s, "receptionist state %d", s.ReceptionistStat))
	}
	for g, stat := range s.GroupStat {
		// 0 is the zero value of a group that has not started yet
		if stat < 0 || stat > shm.Leaving {
			err = multierr.Append(err, violation(s, "group %d state %d", g, stat))
		}
	}

	if s.GroupsWaiting < 0 || s.GroupsWaiting > nGroups {
		err = multierr.Append(err, violation(s, "%d groups waiting out of %d", s.GroupsWaiting, nGroups))
	}

	occupant := make(map[int]int)
	for g, table := range s.AssignedTable {
		if table == shm.None {
			continue
		}
		if table < 0 || table >= nTables {
			err = multierr.Append(err, violation(s, "group %d at table %d of %d", g, table, nTables))
			continue
		}
		if other, ok := occupant[table]; ok {
			err = multierr.Append(err, violation(s, "groups %d and %d share table %d", other, g, table))
			continue
		}
		occupant[table] = g
	}
	if seated := len(occupant); seated+s.GroupsWaiting > nGroups {
		err = multierr.Append(err, violation(s, "%d seated and %d waiting out of %d groups", seated, s.GroupsWaiting, nGroups))
	}
	return err
}

// CheckSnapshots checks every snapshot, and that the group count does not
// change along the sequence.
func CheckSnapshots(nTables int, snaps []statelog.Snapshot) (err error) {
	for i, s := range snaps {
		if i > 0 && len(s.GroupStat) != len(snaps[0].GroupStat) {
			err = multierr.Append(err, violation(s, "%d groups, first snapshot had %d", len(s.GroupStat), len(snaps[0].GroupStat)))
			continue
		}
		err = multierr.Append(err, CheckSnapshot(nTables, s))
	}
	return err
}
