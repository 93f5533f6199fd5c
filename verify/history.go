package verify

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anishathalye/porcupine"
)

var ErrNotLinearizable = errors.New("table history is not linearizable")

// History collects timed operations from concurrent groups.
type History struct {
	lock  sync.Mutex
	start time.Time
	ops   []porcupine.Operation
}

func NewHistory() *History {
	return &History{start: time.Now()}
}

func (h *History) now() int64 {
	return int64(time.Since(h.start))
}

// Begin records the call of an operation by client. The returned function
// records its return with the given output; an operation that never returns
// is left out of the history.
func (h *History) Begin(client int, input any) func(output any) {
	call := h.now()
	return func(output any) {
		ret := h.now()
		h.lock.Lock()
		defer h.lock.Unlock()
		h.ops = append(h.ops, porcupine.Operation{
			ClientId: client,
			Input:    input,
			Call:     call,
			Output:   output,
			Return:   ret,
		})
	}
}

// Operations returns a copy of the completed operations.
func (h *History) Operations() []porcupine.Operation {
	h.lock.Lock()
	defer h.lock.Unlock()
	return append([]porcupine.Operation(nil), h.ops...)
}

// CheckHistory checks ops against TableModel. If vizPath is not empty, the
// linearization found (or the longest partial one) is written there as HTML.
func CheckHistory(nTables int, ops []porcupine.Operation, vizPath string) error {
	model := TableModel(nTables)
	result, info := porcupine.CheckOperationsVerbose(model, ops, 0)
	if vizPath != "" {
		if err := porcupine.VisualizePath(model, info, vizPath); err != nil {
			return fmt.Errorf("error on writing visualization %s: %w", vizPath, err)
		}
	}
	if result != porcupine.Ok {
		return fmt.Errorf("%w: %d operations, result %v", ErrNotLinearizable, len(ops), result)
	}
	return nil
}
