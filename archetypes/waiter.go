package archetypes

import (
	"context"
	"errors"
	"fmt"

	"github.com/DistCompiler/pgo/restaurant/mailbox"
	"github.com/DistCompiler/pgo/restaurant/shm"
)

// ErrUnexpectedRequest is returned by the waiter and the chef when they are
// handed something they do not serve.
var ErrUnexpectedRequest = errors.New("unexpected request")

// Waiter takes each group's order to the chef and each cooked meal to its
// group. It never waits on the chef: orders go through the shared order
// queue.
type Waiter struct {
	archetype
	box *mailbox.Mailbox
}

func NewWaiter(att *shm.Attachment, configFns ...ConfigFn) *Waiter {
	return &Waiter{
		archetype: newArchetype(att, "waiter", "WT", configFns),
		box:       mailbox.Waiter(att),
	}
}

// Run serves one food request and one food-ready notice per group.
func (w *Waiter) Run(ctx context.Context) error {
	nRequests := 2 * w.att.NGroups()
	for served := 0; served < nRequests; served++ {
		req, err := w.waitForClientOrChef(ctx)
		if err != nil {
			return err
		}
		w.debugf("serving %v (%d of %d)", req, served+1, nRequests)
		if req.Group < 0 || req.Group >= w.att.NGroups() {
			return fmt.Errorf("%w: %v names no group", ErrUnexpectedRequest, req)
		}
		switch req.Kind {
		case shm.FoodReq:
			err = w.informChef(ctx, req.Group)
		case shm.FoodReady:
			err = w.takeFoodToTable(ctx, req.Group)
		default:
			err = fmt.Errorf("%w: waiter got %v", ErrUnexpectedRequest, req)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *Waiter) waitForClientOrChef(ctx context.Context) (shm.Request, error) {
	err := w.critical(ctx, func(st *shm.FullState) error {
		st.St.WaiterStat = shm.WaitForRequest
		return nil
	})
	if err != nil {
		return shm.Request{}, err
	}
	req, err := w.box.Await(ctx)
	if err != nil {
		return shm.Request{}, fmt.Errorf("error on waiting for a request (%s): %w", w.tag, err)
	}
	return req, nil
}

func (w *Waiter) informChef(ctx context.Context, g int) error {
	err := w.critical(ctx, func(st *shm.FullState) error {
		if len(st.FoodOrders) >= st.NGroups {
			return fmt.Errorf("%w: order queue full at the order of group %d", ErrUnexpectedRequest, g)
		}
		st.St.WaiterStat = shm.InformChef
		st.FoodOrders = append(st.FoodOrders, g)
		return nil
	})
	if err != nil {
		return err
	}
	return w.up(w.handles.WaitOrder)
}

func (w *Waiter) takeFoodToTable(ctx context.Context, g int) error {
	err := w.critical(ctx, func(st *shm.FullState) error {
		st.St.WaiterStat = shm.TakeToTable
		return nil
	})
	if err != nil {
		return err
	}
	return w.up(w.handles.FoodArrived[g])
}
