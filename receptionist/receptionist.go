// Package receptionist implements the restaurant's coordinator: it serves one
// table request and one bill request per group, seats groups at the
// lowest free table, and hands vacated tables to waiting groups in id order.
package receptionist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/DistCompiler/pgo/restaurant/mailbox"
	"github.com/DistCompiler/pgo/restaurant/semset"
	"github.com/DistCompiler/pgo/restaurant/shm"
	"github.com/DistCompiler/pgo/restaurant/statelog"
)

var (
	// ErrProtocol reports a request no well-behaved group would send.
	ErrProtocol = errors.New("protocol violation")
	// ErrLedgerMismatch reports that groupsWaiting disagrees with the private ledger.
	ErrLedgerMismatch = errors.New("waiting groups do not match the ledger")
)

// Receptionist is the coordinator archetype. It is not safe to Run twice.
type Receptionist struct {
	att     *shm.Attachment
	box     *mailbox.Mailbox
	handles shm.Handles

	sink   statelog.Sink
	logger *log.Logger
	debug  bool

	ledger ledger
}

type ConfigFn func(r *Receptionist)

// SetSink sets where snapshots go. The default discards them.
func SetSink(sink statelog.Sink) ConfigFn {
	return func(r *Receptionist) {
		r.sink = sink
	}
}

func SetLogger(logger *log.Logger) ConfigFn {
	return func(r *Receptionist) {
		r.logger = logger
	}
}

// SetDebug enables one log line per served request.
func SetDebug(debug bool) ConfigFn {
	return func(r *Receptionist) {
		r.debug = debug
	}
}

func New(att *shm.Attachment, configFns ...ConfigFn) *Receptionist {
	r := &Receptionist{
		att:     att,
		box:     mailbox.Receptionist(att),
		handles: att.Handles(),
		sink:    statelog.Discard,
		logger:  log.New(os.Stderr, "[receptionist] ", log.LstdFlags),
		ledger:  make(ledger, att.NGroups()),
	}
	for _, configFn := range configFns {
		configFn(r)
	}
	return r
}

// Run serves exactly two requests per group, then returns. Every error is
// fatal: the segment mutex may still be held, and the caller is expected to
// destroy the segment.
func (r *Receptionist) Run(ctx context.Context) error {
	nRequests := 2 * r.att.NGroups()
	for served := 0; served < nRequests; served++ {
		req, err := r.awaitRequest(ctx)
		if err != nil {
			return err
		}
		if r.debug {
			r.logger.Printf("serving %v (%d of %d)", req, served+1, nRequests)
		}
		if req.Group < 0 || req.Group >= len(r.ledger) {
			return fmt.Errorf("%w: %v names no group", ErrProtocol, req)
		}
		switch req.Kind {
		case shm.TableReq:
			err = r.provideTableOrWaitingRoom(ctx, req.Group)
		case shm.BillReq:
			err = r.receivePayment(ctx, req.Group)
		default:
			err = fmt.Errorf("%w: unexpected %v", ErrProtocol, req)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// critical runs fn inside the critical region. If fn fails, the region is
// left locked.
func (r *Receptionist) critical(ctx context.Context, fn func(st *shm.FullState) error) error {
	g, err := r.att.Lock(ctx)
	if err != nil {
		return fmt.Errorf("error on the down operation for semaphore access (RT): %w", err)
	}
	if err := fn(g.State()); err != nil {
		return err
	}
	if err := g.Unlock(); err != nil {
		return fmt.Errorf("error on the up operation for semaphore access (RT): %w", err)
	}
	return nil
}

func (r *Receptionist) save(st *shm.FullState) error {
	if err := r.sink.SaveState(st); err != nil {
		return fmt.Errorf("error on saving the state (RT): %w", err)
	}
	return nil
}

func (r *Receptionist) signal(h semset.Handle) error {
	if err := r.att.Up(h); err != nil {
		return fmt.Errorf("error on the up operation for %v (RT): %w", h, err)
	}
	return nil
}

func (r *Receptionist) checkLedger(st *shm.FullState) error {
	if n := r.ledger.count(waiting); n != st.GroupsWaiting {
		return fmt.Errorf("%w: groupsWaiting is %d, ledger has %d waiting", ErrLedgerMismatch, st.GroupsWaiting, n)
	}
	return nil
}

func (r *Receptionist) awaitRequest(ctx context.Context) (shm.Request, error) {
	err := r.critical(ctx, func(st *shm.FullState) error {
		st.St.ReceptionistStat = shm.WaitRequest
		return r.save(st)
	})
	if err != nil {
		return shm.Request{}, err
	}
	req, err := r.box.Await(ctx)
	if err != nil {
		return shm.Request{}, fmt.Errorf("error on waiting for a request (RT): %w", err)
	}
	return req, nil
}

// provideTableOrWaitingRoom seats group n at the lowest free table, or makes
// it wait if there is none. A waiting group stays blocked on its table-ready
// signal until a bill frees a table for it.
func (r *Receptionist) provideTableOrWaitingRoom(ctx context.Context, n int) error {
	if r.ledger[n] != notYetArrived {
		return fmt.Errorf("%w: table request from group %d, which is %v", ErrProtocol, n, r.ledger[n])
	}

	table := shm.None
	err := r.critical(ctx, func(st *shm.FullState) error {
		st.St.ReceptionistStat = shm.AssignTable
		if err := r.save(st); err != nil {
			return err
		}

		table = chooseTable(st)
		if table == shm.None {
			st.GroupsWaiting++
			r.ledger[n] = waiting
		} else {
			st.AssignedTable[n] = table
			r.ledger[n] = seated
		}
		if err := r.checkLedger(st); err != nil {
			return err
		}
		return r.save(st)
	})
	if err != nil {
		return err
	}

	if table == shm.None {
		if r.debug {
			r.logger.Printf("group %d waits for a table", n)
		}
		return nil
	}
	if r.debug {
		r.logger.Printf("group %d seated at table %d", n, table)
	}
	// the assignment is already written, and no one reads this signal under the mutex
	return r.signal(r.handles.WaitForTable[n])
}

// receivePayment frees group n's table, hands it to the lowest-id waiting
// group if there is one, and then signals the table as vacated.
func (r *Receptionist) receivePayment(ctx context.Context, n int) error {
	if r.ledger[n] != seated {
		return fmt.Errorf("%w: bill request from group %d, which is %v", ErrProtocol, n, r.ledger[n])
	}

	vacated, next := shm.None, shm.None
	err := r.critical(ctx, func(st *shm.FullState) error {
		st.St.ReceptionistStat = shm.ReceivePayment
		if err := r.save(st); err != nil {
			return err
		}

		r.ledger[n] = finished
		vacated = st.AssignedTable[n]
		if vacated == shm.None {
			return fmt.Errorf("%w: group %d is seated but has no table", ErrLedgerMismatch, n)
		}
		st.AssignedTable[n] = shm.None

		next = nextWaitingGroup(st, r.ledger)
		if next != shm.None {
			st.AssignedTable[next] = vacated
			st.GroupsWaiting--
			r.ledger[next] = seated
			if err := r.signal(r.handles.WaitForTable[next]); err != nil {
				return err
			}
		}
		if err := r.checkLedger(st); err != nil {
			return err
		}
		return r.save(st)
	})
	if err != nil {
		return err
	}

	if r.debug {
		if next != shm.None {
			r.logger.Printf("group %d paid; table %d goes to group %d", n, vacated, next)
		} else {
			r.logger.Printf("group %d paid; table %d is free", n, vacated)
		}
	}
	return r.signal(r.handles.TableDone[vacated])
}
