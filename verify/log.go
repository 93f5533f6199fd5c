// Package verify checks recorded runs of the restaurant after the fact: it
// reads text logs back into snapshots, checks the invariants every snapshot
// must hold, and checks the history of table grants for linearizability.
package verify

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/DistCompiler/pgo/restaurant/shm"
	"github.com/DistCompiler/pgo/restaurant/statelog"
)

var ErrMalformedLog = errors.New("malformed state log")

// ReadLog parses a text log written by statelog.TextLog and returns the
// number of groups it describes and its snapshots, in order.
func ReadLog(r io.Reader) (nGroups int, snaps []statelog.Snapshot, err error) {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	next := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		lineNo++
		return scanner.Text(), true
	}

	title, ok := next()
	if !ok || strings.TrimSpace(title) != statelog.Title {
		return 0, nil, fmt.Errorf("%w: missing title line", ErrMalformedLog)
	}
	if blank, ok := next(); !ok || strings.TrimSpace(blank) != "" {
		return 0, nil, fmt.Errorf("%w: missing blank line after title", ErrMalformedLog)
	}
	header, ok := next()
	if !ok {
		return 0, nil, fmt.Errorf("%w: missing header", ErrMalformedLog)
	}
	nGroups, err = parseHeader(header)
	if err != nil {
		return 0, nil, err
	}

	for {
		line, ok := next()
		if !ok {
			break
		}
		s, err := parseLine(line, nGroups)
		if err != nil {
			return nGroups, snaps, fmt.Errorf("line %d: %w", lineNo, err)
		}
		s.Seq = uint64(len(snaps) + 1)
		snaps = append(snaps, s)
	}
	if err := scanner.Err(); err != nil {
		return nGroups, snaps, err
	}
	return nGroups, snaps, nil
}

func parseHeader(header string) (int, error) {
	fields := strings.Fields(header)
	// CH WT RC, G.. per group, gWT, T.. per group
	if len(fields) < 6 || (len(fields)-4)%2 != 0 {
		return 0, fmt.Errorf("%w: bad header %q", ErrMalformedLog, header)
	}
	nGroups := (len(fields) - 4) / 2
	if nGroups > shm.MaxGroups {
		return 0, fmt.Errorf("%w: %d groups in header", ErrMalformedLog, nGroups)
	}
	if header != statelog.FormatColumns(nGroups) {
		return 0, fmt.Errorf("%w: bad header %q", ErrMalformedLog, header)
	}
	return nGroups, nil
}

// lineWidth is the width of a state line for nGroups groups.
func lineWidth(nGroups int) int {
	return 3*3 + 1 + 4*nGroups + 5 + 4*nGroups
}

func parseLine(line string, nGroups int) (statelog.Snapshot, error) {
	if len(line) != lineWidth(nGroups) {
		return statelog.Snapshot{}, fmt.Errorf("%w: expected %d columns, got %d", ErrMalformedLog, lineWidth(nGroups), len(line))
	}
	pos := 0
	field := func(width int) string {
		f := line[pos : pos+width]
		pos += width
		return strings.TrimSpace(f)
	}
	number := func(width int) (int, error) {
		f := field(width)
		n, err := strconv.Atoi(f)
		if err != nil {
			return 0, fmt.Errorf("%w: column %d: %q is not a number", ErrMalformedLog, pos-width, f)
		}
		return n, nil
	}

	var s statelog.Snapshot
	var err error
	if s.ChefStat, err = number(3); err != nil {
		return s, err
	}
	if s.WaiterStat, err = number(3); err != nil {
		return s, err
	}
	if s.ReceptionistStat, err = number(3); err != nil {
		return s, err
	}
	if field(1) != "" {
		return s, fmt.Errorf("%w: missing separator", ErrMalformedLog)
	}
	s.GroupStat = make([]int, nGroups)
	for g := range s.GroupStat {
		if s.GroupStat[g], err = number(4); err != nil {
			return s, err
		}
	}
	if s.GroupsWaiting, err = number(5); err != nil {
		return s, err
	}
	s.AssignedTable = make([]int, nGroups)
	for g := range s.AssignedTable {
		if line[pos:pos+4] == "   ." {
			pos += 4
			s.AssignedTable[g] = shm.None
			continue
		}
		if s.AssignedTable[g], err = number(4); err != nil {
			return s, err
		}
	}
	return s, nil
}
