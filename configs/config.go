package configs

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/DistCompiler/pgo/restaurant/shm"
)

var ErrInvalid = errors.New("invalid configuration")

type Root struct {
	NumGroups int
	NumTables int

	// Key names the shared segment.
	Key string

	// LogFile is the text state log; empty means standard output.
	LogFile string
	// EventFile, if set, receives one JSON object per snapshot.
	EventFile string
	// PersistDir, if set, is a badger directory every snapshot is stored in.
	PersistDir string
	// HistoryFile, if set, receives an HTML visualization of the table history check.
	HistoryFile string

	Debug bool

	CookTime time.Duration

	Groups map[int]Group
}

type Group struct {
	StartTime time.Duration
	EatTime   time.Duration
}

// Default is a configuration for nGroups groups and nTables tables, logging
// to standard output.
func Default(nGroups, nTables int) Root {
	return Root{
		NumGroups: nGroups,
		NumTables: nTables,
		Key:       "restaurant",
	}
}

func ReadConfig(path string) (Root, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("Key", "restaurant")
	if err := v.ReadInConfig(); err != nil {
		return Root{}, err
	}
	var c Root
	err := v.Unmarshal(&c)
	return c, err
}

// Group returns the settings of group g, zero if it has none.
func (c Root) Group(g int) Group {
	return c.Groups[g]
}

func (c Root) Validate() error {
	if c.NumGroups < 1 || c.NumGroups > shm.MaxGroups {
		return fmt.Errorf("%w: %d groups (allowed 1..%d)", ErrInvalid, c.NumGroups, shm.MaxGroups)
	}
	if c.NumTables < 1 || c.NumTables > shm.MaxTables {
		return fmt.Errorf("%w: %d tables (allowed 1..%d)", ErrInvalid, c.NumTables, shm.MaxTables)
	}
	if c.Key == "" {
		return fmt.Errorf("%w: empty segment key", ErrInvalid)
	}
	if c.CookTime < 0 {
		return fmt.Errorf("%w: negative cook time %v", ErrInvalid, c.CookTime)
	}
	for g, group := range c.Groups {
		if g < 0 || g >= c.NumGroups {
			return fmt.Errorf("%w: settings for group %d of %d", ErrInvalid, g, c.NumGroups)
		}
		if group.StartTime < 0 || group.EatTime < 0 {
			return fmt.Errorf("%w: negative delay for group %d", ErrInvalid, g)
		}
	}
	return nil
}
