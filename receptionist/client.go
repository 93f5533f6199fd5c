package receptionist

import (
	"context"
	"fmt"

	"github.com/DistCompiler/pgo/restaurant/mailbox"
	"github.com/DistCompiler/pgo/restaurant/shm"
)

// Client is the side of the receptionist protocol used by groups and by
// anything waiting for tables to be vacated.
type Client struct {
	att     *shm.Attachment
	box     *mailbox.Mailbox
	handles shm.Handles
}

func NewClient(att *shm.Attachment) *Client {
	return &Client{
		att:     att,
		box:     mailbox.Receptionist(att),
		handles: att.Handles(),
	}
}

// SubmitRequest hands a table or bill request for group g to the
// receptionist. It returns once the receptionist has taken the request.
func (c *Client) SubmitRequest(ctx context.Context, kind shm.RequestKind, g int) error {
	if kind != shm.TableReq && kind != shm.BillReq {
		return fmt.Errorf("%w: %v is not addressed to the receptionist", ErrProtocol, kind)
	}
	return c.box.Submit(ctx, shm.Request{Kind: kind, Group: g})
}

// WaitForTableReady blocks until group g has been seated and returns its table.
func (c *Client) WaitForTableReady(ctx context.Context, g int) (int, error) {
	if g < 0 || g >= len(c.handles.WaitForTable) {
		return shm.None, fmt.Errorf("%w: no group %d", ErrProtocol, g)
	}
	if err := c.att.Down(ctx, c.handles.WaitForTable[g]); err != nil {
		return shm.None, fmt.Errorf("error on the down operation for the table of group %d: %w", g, err)
	}
	guard, err := c.att.Lock(ctx)
	if err != nil {
		return shm.None, fmt.Errorf("error on the down operation for semaphore access: %w", err)
	}
	table := guard.State().AssignedTable[g]
	if err := guard.Unlock(); err != nil {
		return shm.None, fmt.Errorf("error on the up operation for semaphore access: %w", err)
	}
	if table == shm.None {
		return shm.None, fmt.Errorf("%w: group %d signalled without a table", ErrLedgerMismatch, g)
	}
	return table, nil
}

// WaitForTableVacated blocks until the occupant of table t has paid.
func (c *Client) WaitForTableVacated(ctx context.Context, t int) error {
	if t < 0 || t >= len(c.handles.TableDone) {
		return fmt.Errorf("%w: no table %d", ErrProtocol, t)
	}
	if err := c.att.Down(ctx, c.handles.TableDone[t]); err != nil {
		return fmt.Errorf("error on the down operation for the vacancy of table %d: %w", t, err)
	}
	return nil
}
