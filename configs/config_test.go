package configs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sample = `
numGroups: 3
numTables: 2
logFile: restaurant.log
eventFile: events.jsonl
debug: true
cookTime: 5ms
groups:
  0:
    startTime: 1ms
    eatTime: 10ms
  2:
    eatTime: 2ms
`

func TestReadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restaurant.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := ReadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if c.NumGroups != 3 || c.NumTables != 2 {
		t.Errorf("expected 3 groups and 2 tables, got %d and %d", c.NumGroups, c.NumTables)
	}
	if c.Key != "restaurant" {
		t.Errorf("expected the default key, got %q", c.Key)
	}
	if c.LogFile != "restaurant.log" || c.EventFile != "events.jsonl" || c.PersistDir != "" {
		t.Errorf("unexpected sinks %q %q %q", c.LogFile, c.EventFile, c.PersistDir)
	}
	if !c.Debug || c.CookTime != 5*time.Millisecond {
		t.Errorf("unexpected debug %v, cook time %v", c.Debug, c.CookTime)
	}
	if g := c.Group(0); g.StartTime != time.Millisecond || g.EatTime != 10*time.Millisecond {
		t.Errorf("group 0: %+v", g)
	}
	if g := c.Group(1); g != (Group{}) {
		t.Errorf("group 1 should have no settings, got %+v", g)
	}
	if g := c.Group(2); g.EatTime != 2*time.Millisecond {
		t.Errorf("group 2: %+v", g)
	}
	if err := c.Validate(); err != nil {
		t.Error(err)
	}
}

func TestReadConfigMissingFile(t *testing.T) {
	if _, err := ReadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Root)
		ok     bool
	}{
		{"default", func(c *Root) {}, true},
		{"no groups", func(c *Root) { c.NumGroups = 0 }, false},
		{"too many groups", func(c *Root) { c.NumGroups = 11 }, false},
		{"no tables", func(c *Root) { c.NumTables = 0 }, false},
		{"too many tables", func(c *Root) { c.NumTables = 11 }, false},
		{"empty key", func(c *Root) { c.Key = "" }, false},
		{"negative cook time", func(c *Root) { c.CookTime = -time.Second }, false},
		{"unknown group", func(c *Root) { c.Groups = map[int]Group{4: {}} }, false},
		{"negative eat time", func(c *Root) { c.Groups = map[int]Group{0: {EatTime: -1}} }, false},
		{"known group", func(c *Root) { c.Groups = map[int]Group{3: {EatTime: time.Millisecond}} }, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := Default(4, 2)
			test.modify(&c)
			err := c.Validate()
			if test.ok && err != nil {
				t.Errorf("unexpected error %v", err)
			}
			if !test.ok && !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}
