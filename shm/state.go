package shm

import "fmt"

const (
	// MaxGroups bounds the number of groups a segment can hold.
	MaxGroups = 10
	// MaxTables bounds the number of tables a segment can hold.
	MaxTables = 10

	// None marks an unassigned table, or the absence of a choice.
	None = -1
)

// chef states
const (
	WaitForOrder = 0
	Cook         = 1
	Rest         = 2
)

// waiter states
const (
	WaitForRequest = 0
	InformChef     = 1
	TakeToTable    = 2
)

// receptionist states
const (
	WaitRequest    = 0
	AssignTable    = 1
	ReceivePayment = 2
)

// group states
const (
	GoToRestaurant = 1
	AtReception    = 2
	FoodRequest    = 3
	WaitForFood    = 4
	Eat            = 5
	CheckOut       = 6
	Leaving        = 7
)

// RequestKind is the type of a request carried by a mailbox.
type RequestKind int

const (
	// TableReq and BillReq are addressed to the receptionist.
	TableReq RequestKind = iota + 1
	BillReq
	// FoodReq and FoodReady are addressed to the waiter.
	FoodReq
	FoodReady
)

func (k RequestKind) String() string {
	switch k {
	case TableReq:
		return "TABLE_REQUEST"
	case BillReq:
		return "BILL_REQUEST"
	case FoodReq:
		return "FOOD_REQUEST"
	case FoodReady:
		return "FOOD_READY"
	default:
		return fmt.Sprintf("RequestKind(%d)", int(k))
	}
}

// Request is the value handed through a mailbox.
type Request struct {
	Kind  RequestKind
	Group int
}

func (req Request) String() string {
	return fmt.Sprintf("%v(%d)", req.Kind, req.Group)
}

// Slot is a single-request mailbox cell in shared state.
type Slot struct {
	Req Request
	// Ack is set when the submitter waits for its per-group acknowledgement.
	Ack bool
}

// Status holds the phase of every actor.
type Status struct {
	ChefStat         int
	WaiterStat       int
	ReceptionistStat int
	GroupStat        []int
}

// FullState is the complete simulation state stored in a segment. It is only
// reachable through a Guard, i.e. while holding the segment mutex.
type FullState struct {
	St Status

	NGroups int
	NTables int

	GroupsWaiting int
	AssignedTable []int

	ReceptionistSlot Slot
	WaiterSlot       Slot

	// FoodOrders is the chef's FIFO of groups whose order was taken.
	FoodOrders []int
}

func newFullState(nGroups, nTables int) FullState {
	st := FullState{
		St: Status{
			ChefStat:         WaitForOrder,
			WaiterStat:       WaitForRequest,
			ReceptionistStat: WaitRequest,
			GroupStat:        make([]int, nGroups),
		},
		NGroups:       nGroups,
		NTables:       nTables,
		AssignedTable: make([]int, nGroups),
		FoodOrders:    make([]int, 0, nGroups),
	}
	for g := range st.AssignedTable {
		st.AssignedTable[g] = None
	}
	return st
}

// TableOccupant returns the group sitting at table t, or None.
func (st *FullState) TableOccupant(t int) int {
	for g, table := range st.AssignedTable {
		if table == t {
			return g
		}
	}
	return None
}
