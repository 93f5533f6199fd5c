package statelog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/DistCompiler/pgo/restaurant/shm"
)

// Title is the first line of every text log.
const Title = "Restaurant - Description of the internal state"

// FormatHeader renders the title line, the blank line and the column header
// for nGroups groups.
func FormatHeader(nGroups int) string {
	return fmt.Sprintf("%31c%s\n\n%s\n", ' ', Title, FormatColumns(nGroups))
}

// FormatColumns renders the column header, without the trailing newline.
func FormatColumns(nGroups int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%3s%3s%3s ", "CH", "WT", "RC")
	for g := 0; g < nGroups; g++ {
		fmt.Fprintf(&b, " G%02d", g)
	}
	fmt.Fprintf(&b, "%5s", "gWT")
	for g := 0; g < nGroups; g++ {
		fmt.Fprintf(&b, " T%02d", g)
	}
	return b.String()
}

// FormatLine renders one state line, without the trailing newline.
func FormatLine(s Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%3d%3d%3d ", s.ChefStat, s.WaiterStat, s.ReceptionistStat)
	for _, stat := range s.GroupStat {
		fmt.Fprintf(&b, "%4d", stat)
	}
	fmt.Fprintf(&b, "%5d", s.GroupsWaiting)
	for _, table := range s.AssignedTable {
		if table != shm.None {
			fmt.Fprintf(&b, "%4d", table)
		} else {
			fmt.Fprintf(&b, "%4s", ".")
		}
	}
	return b.String()
}

// TextLog appends one fixed-width line per snapshot to a writer.
type TextLog struct {
	lock    sync.Mutex
	w       io.Writer
	closer  io.Closer
	nGroups int
}

// NewTextLog writes the header for nGroups groups to w and returns a log
// appending to it.
func NewTextLog(w io.Writer, nGroups int) (*TextLog, error) {
	if _, err := io.WriteString(w, FormatHeader(nGroups)); err != nil {
		return nil, fmt.Errorf("error on writing the log header: %w", err)
	}
	return &TextLog{w: w, nGroups: nGroups}, nil
}

// CreateTextLog truncates the file name and writes the header into it. An
// empty name logs to the standard output instead.
func CreateTextLog(name string, nGroups int) (*TextLog, error) {
	if name == "" {
		return NewTextLog(os.Stdout, nGroups)
	}
	file, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("error on opening log file: %w", err)
	}
	tl, err := NewTextLog(file, nGroups)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	tl.closer = file
	return tl, nil
}

func (tl *TextLog) SaveState(st *shm.FullState) error {
	s := Capture(st)
	if len(s.GroupStat) != tl.nGroups {
		return unexpectedWidth("text log", tl.nGroups, len(s.GroupStat))
	}
	tl.lock.Lock()
	defer tl.lock.Unlock()
	if _, err := io.WriteString(tl.w, FormatLine(s)+"\n"); err != nil {
		return fmt.Errorf("error on writing the log line: %w", err)
	}
	return nil
}

// Close closes the log file. It is a no-op for the standard output.
func (tl *TextLog) Close() error {
	if tl.closer == nil {
		return nil
	}
	if err := tl.closer.Close(); err != nil {
		return fmt.Errorf("error on closing of log file: %w", err)
	}
	return nil
}
