package receptionist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DistCompiler/pgo/restaurant/shm"
	"github.com/DistCompiler/pgo/restaurant/statelog"
)

// dine plays the receptionist-facing part of group g's lifecycle.
func dine(ctx context.Context, client *Client, g int) error {
	if err := client.SubmitRequest(ctx, shm.TableReq, g); err != nil {
		return err
	}
	table, err := client.WaitForTableReady(ctx, g)
	if err != nil {
		return err
	}
	if err := client.SubmitRequest(ctx, shm.BillReq, g); err != nil {
		return err
	}
	return client.WaitForTableVacated(ctx, table)
}

func TestTermination(t *testing.T) {
	tests := []struct {
		nGroups, nTables int
	}{
		{1, 1},
		{2, 1},
		{4, 2},
		{shm.MaxGroups, 1},
		{shm.MaxGroups, 3},
		{shm.MaxGroups, shm.MaxTables},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d groups %d tables", test.nGroups, test.nTables), func(t *testing.T) {
			reg := shm.NewRegistry()
			defer reg.Close()
			key := shm.KeyOf(t.Name())
			if err := reg.Create(key, test.nGroups, test.nTables); err != nil {
				t.Fatal(err)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			att, err := reg.Attach(key)
			if err != nil {
				t.Fatal(err)
			}
			history := statelog.NewHistory()
			done := make(chan error, 1)
			go func() {
				done <- New(att, SetSink(history)).Run(ctx)
			}()

			var wg sync.WaitGroup
			for g := 0; g < test.nGroups; g++ {
				clientAtt, err := reg.Attach(key)
				if err != nil {
					t.Fatal(err)
				}
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					if err := dine(ctx, NewClient(clientAtt), g); err != nil {
						t.Errorf("group %d: %v", g, err)
					}
				}(g)
			}
			wg.Wait()

			if err := <-done; err != nil {
				t.Fatalf("receptionist: %v", err)
			}

			// two snapshots per request, plus one before each wait
			if got, expected := history.Len(), 3*2*test.nGroups; got != expected {
				t.Errorf("expected %d snapshots, got %d", expected, got)
			}
			for _, s := range history.Snapshots() {
				seen := make(map[int]int)
				for g, table := range s.AssignedTable {
					if table == shm.None {
						continue
					}
					if other, ok := seen[table]; ok {
						t.Fatalf("snapshot %d: groups %d and %d share table %d", s.Seq, other, g, table)
					}
					seen[table] = g
				}
				if s.GroupsWaiting < 0 || s.GroupsWaiting > test.nGroups {
					t.Fatalf("snapshot %d: %d groups waiting", s.Seq, s.GroupsWaiting)
				}
			}
			last := history.Snapshots()[history.Len()-1]
			for g, table := range last.AssignedTable {
				if table != shm.None {
					t.Errorf("group %d still holds table %d", g, table)
				}
			}
		})
	}
}

func TestRunFailsWhenSegmentDestroyed(t *testing.T) {
	reg := shm.NewRegistry()
	key := shm.KeyOf(t.Name())
	if err := reg.Create(key, 1, 1); err != nil {
		t.Fatal(err)
	}
	att, err := reg.Attach(key)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() {
		done <- New(att).Run(context.Background())
	}()
	time.Sleep(10 * time.Millisecond)
	if err := reg.Destroy(key); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err == nil {
			t.Error("expected an error after the segment was destroyed")
		}
	case <-time.After(time.Second):
		t.Fatal("receptionist still blocked after destroy")
	}
}

func TestLedgerMismatch(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *Receptionist, st *shm.FullState)
		serve func(ctx context.Context, r *Receptionist) error
	}{
		{
			name: "ledger waiting without groupsWaiting",
			setup: func(r *Receptionist, st *shm.FullState) {
				r.ledger[1] = waiting
			},
			serve: func(ctx context.Context, r *Receptionist) error {
				return r.provideTableOrWaitingRoom(ctx, 0)
			},
		},
		{
			name: "groupsWaiting without a waiting group",
			setup: func(r *Receptionist, st *shm.FullState) {
				r.ledger[0] = seated
				st.AssignedTable[0] = 0
				st.GroupsWaiting = 1
			},
			serve: func(ctx context.Context, r *Receptionist) error {
				return r.receivePayment(ctx, 0)
			},
		},
		{
			name: "seated group without a table",
			setup: func(r *Receptionist, st *shm.FullState) {
				r.ledger[0] = seated
			},
			serve: func(ctx context.Context, r *Receptionist) error {
				return r.receivePayment(ctx, 0)
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			reg := shm.NewRegistry()
			defer reg.Close()
			key := shm.KeyOf(t.Name())
			if err := reg.Create(key, 2, 1); err != nil {
				t.Fatal(err)
			}
			att, err := reg.Attach(key)
			if err != nil {
				t.Fatal(err)
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			r := New(att)
			g, err := att.Lock(ctx)
			if err != nil {
				t.Fatal(err)
			}
			test.setup(r, g.State())
			if err := g.Unlock(); err != nil {
				t.Fatal(err)
			}

			if err := test.serve(ctx, r); !errors.Is(err, ErrLedgerMismatch) {
				t.Errorf("expected ErrLedgerMismatch, got %v", err)
			}
		})
	}
}
