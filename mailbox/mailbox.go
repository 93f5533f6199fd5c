// Package mailbox implements the single-slot request channel between
// archetypes and a consumer (the receptionist or the waiter).
//
// A submitter downs slot-free before writing the slot and ups request-ready
// after; the consumer downs request-ready, copies the slot under the mutex,
// and only then ups slot-free. Writes into the slot are serialised by
// slot-free, not by the mutex alone.
package mailbox

import (
	"context"
	"fmt"

	"github.com/DistCompiler/pgo/restaurant/semset"
	"github.com/DistCompiler/pgo/restaurant/shm"
)

// Mailbox is one archetype's endpoint of a consumer's request slot.
type Mailbox struct {
	name string
	att  *shm.Attachment

	slot         func(st *shm.FullState) *shm.Slot
	requestReady semset.Handle
	slotFree     semset.Handle
	acks         []semset.Handle
}

// Receptionist returns the endpoint of the receptionist's mailbox.
func Receptionist(att *shm.Attachment) *Mailbox {
	h := att.Handles()
	return &Mailbox{
		name:         "receptionist",
		att:          att,
		slot:         func(st *shm.FullState) *shm.Slot { return &st.ReceptionistSlot },
		requestReady: h.ReceptionistReq,
		slotFree:     h.ReceptionistRequestPossible,
		acks:         h.ReceptionistAck,
	}
}

// Waiter returns the endpoint of the waiter's mailbox.
func Waiter(att *shm.Attachment) *Mailbox {
	h := att.Handles()
	return &Mailbox{
		name:         "waiter",
		att:          att,
		slot:         func(st *shm.FullState) *shm.Slot { return &st.WaiterSlot },
		requestReady: h.WaiterReq,
		slotFree:     h.WaiterRequestPossible,
		acks:         h.WaiterAck,
	}
}

func (box *Mailbox) String() string {
	return box.name + " mailbox"
}

// Submit hands req to the consumer and returns once the consumer has copied
// it out. It blocks while another request is in flight.
func (box *Mailbox) Submit(ctx context.Context, req shm.Request) error {
	if req.Group < 0 || req.Group >= len(box.acks) {
		return fmt.Errorf("%v: submit %v: group out of range", box, req)
	}
	if err := box.put(ctx, req, true); err != nil {
		return err
	}
	if err := box.att.Down(ctx, box.acks[req.Group]); err != nil {
		return fmt.Errorf("%v: error on the down operation for the acknowledgement of %v: %w", box, req, err)
	}
	return nil
}

// Post hands req to the consumer and returns as soon as it is in the slot.
// Use it when the submitter must not wait on the consumer.
func (box *Mailbox) Post(ctx context.Context, req shm.Request) error {
	return box.put(ctx, req, false)
}

func (box *Mailbox) put(ctx context.Context, req shm.Request, ack bool) error {
	if err := box.att.Down(ctx, box.slotFree); err != nil {
		return fmt.Errorf("%v: error on the down operation for slot availability: %w", box, err)
	}
	g, err := box.att.Lock(ctx)
	if err != nil {
		return fmt.Errorf("%v: error on the down operation for semaphore access: %w", box, err)
	}
	*box.slot(g.State()) = shm.Slot{Req: req, Ack: ack}
	if err := g.Unlock(); err != nil {
		return fmt.Errorf("%v: error on the up operation for semaphore access: %w", box, err)
	}
	if err := box.att.Up(box.requestReady); err != nil {
		return fmt.Errorf("%v: error on the up operation for request availability: %w", box, err)
	}
	return nil
}

// Await blocks until a request is in the slot and returns a copy of it. The
// slot is released to the next submitter only after the copy.
func (box *Mailbox) Await(ctx context.Context) (shm.Request, error) {
	if err := box.att.Down(ctx, box.requestReady); err != nil {
		return shm.Request{}, fmt.Errorf("%v: error on the down operation for request availability: %w", box, err)
	}
	g, err := box.att.Lock(ctx)
	if err != nil {
		return shm.Request{}, fmt.Errorf("%v: error on the down operation for semaphore access: %w", box, err)
	}
	slot := *box.slot(g.State())
	if err := g.Unlock(); err != nil {
		return shm.Request{}, fmt.Errorf("%v: error on the up operation for semaphore access: %w", box, err)
	}

	if slot.Ack {
		if slot.Req.Group < 0 || slot.Req.Group >= len(box.acks) {
			return shm.Request{}, fmt.Errorf("%v: acknowledged request %v names no group", box, slot.Req)
		}
		// ack before freeing the slot, so only this submitter can be waiting on it
		if err := box.att.Up(box.acks[slot.Req.Group]); err != nil {
			return shm.Request{}, fmt.Errorf("%v: error on the up operation for the acknowledgement of %v: %w", box, slot.Req, err)
		}
	}
	if err := box.att.Up(box.slotFree); err != nil {
		return shm.Request{}, fmt.Errorf("%v: error on the up operation for slot availability: %w", box, err)
	}
	return slot.Req, nil
}
