package verify

import (
	"fmt"
	"slices"
	"strings"

	"github.com/anishathalye/porcupine"

	"github.com/DistCompiler/pgo/restaurant/shm"
)

// TableRequest is a group asking for a table. The operation's output is the
// table index it was given.
type TableRequest struct {
	Group int
}

// BillRequest is a group paying. The operation's output is the table index
// it vacated.
type BillRequest struct {
	Group int
}

// tableState maps each table to its occupant, or shm.None.
type tableState []int

func (state tableState) with(table, occupant int) tableState {
	fresh := slices.Clone(state)
	fresh[table] = occupant
	return fresh
}

// TableModel is the sequential model of the tables of a restaurant:
// a table is granted only while free, and a bill frees the payer's own table.
func TableModel(nTables int) porcupine.Model {
	return porcupine.Model{
		Init: func() any {
			state := make(tableState, nTables)
			for t := range state {
				state[t] = shm.None
			}
			return state
		},
		Step: func(state, input, output any) (bool, any) {
			stateT := state.(tableState)
			table, ok := output.(int)
			if !ok || table < 0 || table >= len(stateT) {
				return false, stateT
			}
			switch input := input.(type) {
			case TableRequest:
				if stateT[table] != shm.None || slices.Contains(stateT, input.Group) {
					return false, stateT
				}
				return true, stateT.with(table, input.Group)
			case BillRequest:
				if stateT[table] != input.Group {
					return false, stateT
				}
				return true, stateT.with(table, shm.None)
			default:
				panic(fmt.Errorf("unrecognized input: %v", input))
			}
		},
		Equal: func(state1, state2 any) bool {
			return slices.Equal(state1.(tableState), state2.(tableState))
		},
		DescribeState: func(state any) string {
			var builder strings.Builder
			builder.WriteString("[")
			for t, occupant := range state.(tableState) {
				if t > 0 {
					builder.WriteString(", ")
				}
				if occupant == shm.None {
					fmt.Fprintf(&builder, "T%02d: free", t)
				} else {
					fmt.Fprintf(&builder, "T%02d: G%02d", t, occupant)
				}
			}
			builder.WriteString("]")
			return builder.String()
		},
		DescribeOperation: func(input, output any) string {
			switch input := input.(type) {
			case TableRequest:
				return fmt.Sprintf("TableRequest(G%02d) -> T%02d", input.Group, output)
			case BillRequest:
				return fmt.Sprintf("BillRequest(G%02d) -> T%02d", input.Group, output)
			default:
				return fmt.Sprintf("%v -> %v", input, output)
			}
		},
	}
}
