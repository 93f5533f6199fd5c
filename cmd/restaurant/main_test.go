package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DistCompiler/pgo/restaurant/bootstrap"
	"github.com/DistCompiler/pgo/restaurant/configs"
	"github.com/DistCompiler/pgo/restaurant/statelog"
	"github.com/DistCompiler/pgo/restaurant/verify"
)

func writeLog(t *testing.T, c configs.Root) {
	t.Helper()
	r, err := bootstrap.New(c, bootstrap.SetLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	c := configs.Default(3, 2)
	c.LogFile = filepath.Join(dir, "restaurant.log")
	writeLog(t, c)

	if err := check(c.LogFile, c.NumTables); err != nil {
		t.Errorf("a log written by a run should check clean, got %v", err)
	}
}

func TestCheckRejectsBadLogs(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		contents string
		target   error
	}{
		{"truncated header", statelog.Title + "\n", verify.ErrMalformedLog},
		{"garbage line", statelog.FormatHeader(2) + "not a snapshot\n", verify.ErrMalformedLog},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(dir, test.name+".log")
			if err := os.WriteFile(path, []byte(test.contents), 0o644); err != nil {
				t.Fatal(err)
			}
			if err := check(path, 1); !errors.Is(err, test.target) {
				t.Errorf("expected %v, got %v", test.target, err)
			}
		})
	}

	if err := check(filepath.Join(dir, "missing.log"), 1); err == nil {
		t.Error("expected an error for a missing log")
	}
}
