package archetypes

import (
	"context"
	"fmt"

	"github.com/DistCompiler/pgo/restaurant/mailbox"
	"github.com/DistCompiler/pgo/restaurant/shm"
)

// Chef cooks one order per group, in the order the waiter queued them.
type Chef struct {
	archetype
	waiter *mailbox.Mailbox
}

func NewChef(att *shm.Attachment, configFns ...ConfigFn) *Chef {
	return &Chef{
		archetype: newArchetype(att, "chef", "CH", configFns),
		waiter:    mailbox.Waiter(att),
	}
}

func (c *Chef) Run(ctx context.Context) error {
	nOrders := c.att.NGroups()
	for cooked := 0; cooked < nOrders; cooked++ {
		g, err := c.waitForOrder(ctx)
		if err != nil {
			return err
		}
		c.debugf("cooking for group %d (%d of %d)", g, cooked+1, nOrders)
		if err := sleep(ctx, c.cookTime); err != nil {
			return err
		}
		if err := c.processOrder(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chef) waitForOrder(ctx context.Context) (int, error) {
	err := c.critical(ctx, func(st *shm.FullState) error {
		st.St.ChefStat = shm.WaitForOrder
		return nil
	})
	if err != nil {
		return shm.None, err
	}
	if err := c.down(ctx, c.handles.WaitOrder); err != nil {
		return shm.None, err
	}

	g := shm.None
	err = c.critical(ctx, func(st *shm.FullState) error {
		if len(st.FoodOrders) == 0 {
			return fmt.Errorf("%w: order signalled but the queue is empty", ErrUnexpectedRequest)
		}
		g = st.FoodOrders[0]
		st.FoodOrders = append(st.FoodOrders[:0], st.FoodOrders[1:]...)
		st.St.ChefStat = shm.Cook
		return nil
	})
	return g, err
}

// processOrder hands the meal to the waiter without waiting for it to be
// picked up, then rests.
func (c *Chef) processOrder(ctx context.Context, g int) error {
	if err := c.waiter.Post(ctx, shm.Request{Kind: shm.FoodReady, Group: g}); err != nil {
		return fmt.Errorf("error on telling the waiter the food is ready (%s): %w", c.tag, err)
	}
	return c.critical(ctx, func(st *shm.FullState) error {
		st.St.ChefStat = shm.Rest
		return nil
	})
}
