package archetypes

import (
	"context"
	"fmt"

	"github.com/DistCompiler/pgo/restaurant/mailbox"
	"github.com/DistCompiler/pgo/restaurant/receptionist"
	"github.com/DistCompiler/pgo/restaurant/shm"
	"github.com/DistCompiler/pgo/restaurant/verify"
)

// Group is one party of customers. It runs through its lifecycle once.
type Group struct {
	archetype
	id     int
	client *receptionist.Client
	waiter *mailbox.Mailbox
}

func NewGroup(att *shm.Attachment, id int, configFns ...ConfigFn) *Group {
	return &Group{
		archetype: newArchetype(att, fmt.Sprintf("group %d", id), fmt.Sprintf("GR%02d", id), configFns),
		id:        id,
		client:    receptionist.NewClient(att),
		waiter:    mailbox.Waiter(att),
	}
}

func (grp *Group) setStatus(ctx context.Context, stat int) error {
	return grp.critical(ctx, func(st *shm.FullState) error {
		st.St.GroupStat[grp.id] = stat
		return nil
	})
}

func (grp *Group) Run(ctx context.Context) error {
	if grp.id < 0 || grp.id >= grp.att.NGroups() {
		return fmt.Errorf("%w: no group %d", receptionist.ErrProtocol, grp.id)
	}

	if err := grp.setStatus(ctx, shm.GoToRestaurant); err != nil {
		return err
	}
	if err := sleep(ctx, grp.startTime); err != nil {
		return err
	}

	table, err := grp.checkInAtReception(ctx)
	if err != nil {
		return err
	}
	grp.debugf("seated at table %d", table)

	if err := grp.orderFood(ctx); err != nil {
		return err
	}
	if err := grp.waitFood(ctx); err != nil {
		return err
	}

	if err := grp.setStatus(ctx, shm.Eat); err != nil {
		return err
	}
	if err := sleep(ctx, grp.eatTime); err != nil {
		return err
	}

	if err := grp.checkOutAtReception(ctx, table); err != nil {
		return err
	}
	grp.debugf("left table %d", table)
	return grp.setStatus(ctx, shm.Leaving)
}

func (grp *Group) checkInAtReception(ctx context.Context) (int, error) {
	if err := grp.setStatus(ctx, shm.AtReception); err != nil {
		return shm.None, err
	}
	var done func(output any)
	if grp.history != nil {
		done = grp.history.Begin(grp.id, verify.TableRequest{Group: grp.id})
	}
	if err := grp.client.SubmitRequest(ctx, shm.TableReq, grp.id); err != nil {
		return shm.None, fmt.Errorf("error on asking for a table (%s): %w", grp.tag, err)
	}
	table, err := grp.client.WaitForTableReady(ctx, grp.id)
	if err != nil {
		return shm.None, fmt.Errorf("error on waiting for a table (%s): %w", grp.tag, err)
	}
	if done != nil {
		done(table)
	}
	return table, nil
}

func (grp *Group) orderFood(ctx context.Context) error {
	if err := grp.setStatus(ctx, shm.FoodRequest); err != nil {
		return err
	}
	if err := grp.waiter.Submit(ctx, shm.Request{Kind: shm.FoodReq, Group: grp.id}); err != nil {
		return fmt.Errorf("error on ordering food (%s): %w", grp.tag, err)
	}
	return nil
}

func (grp *Group) waitFood(ctx context.Context) error {
	if err := grp.setStatus(ctx, shm.WaitForFood); err != nil {
		return err
	}
	return grp.down(ctx, grp.handles.FoodArrived[grp.id])
}

func (grp *Group) checkOutAtReception(ctx context.Context, table int) error {
	if err := grp.setStatus(ctx, shm.CheckOut); err != nil {
		return err
	}
	var done func(output any)
	if grp.history != nil {
		done = grp.history.Begin(grp.id, verify.BillRequest{Group: grp.id})
	}
	if err := grp.client.SubmitRequest(ctx, shm.BillReq, grp.id); err != nil {
		return fmt.Errorf("error on asking for the bill (%s): %w", grp.tag, err)
	}
	// The vacated signal is counted per table, not per group: a group that
	// pays quickly may consume the signal of the previous occupant before its
	// own bill is served. Every bill ups the signal once, so the count balances.
	if err := grp.client.WaitForTableVacated(ctx, table); err != nil {
		return fmt.Errorf("error on paying the bill (%s): %w", grp.tag, err)
	}
	if done != nil {
		done(table)
	}
	return nil
}
