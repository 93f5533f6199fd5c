package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/pkg/profile"

	"github.com/DistCompiler/pgo/restaurant/bootstrap"
	"github.com/DistCompiler/pgo/restaurant/configs"
	"github.com/DistCompiler/pgo/restaurant/shm"
	"github.com/DistCompiler/pgo/restaurant/verify"
)

func check(path string, nTables int) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	nGroups, snaps, err := verify.ReadLog(file)
	if err != nil {
		return err
	}
	if err := verify.CheckSnapshots(nTables, snaps); err != nil {
		return err
	}
	log.Printf("%s: %d snapshots of %d groups at %d tables are consistent", path, len(snaps), nGroups, nTables)
	return nil
}

func run(c configs.Root, profileMode string) error {
	switch profileMode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	default:
		log.Fatalf("unknown profile mode %q (cpu or mem)", profileMode)
	}

	r, err := bootstrap.New(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return r.Run(ctx)
}

func main() {
	var configPath, checkPath, profileMode string
	var nGroups, nTables int
	var logFile, eventFile, persistDir, historyFile string
	var debug bool
	flag.StringVar(&configPath, "c", "", "Config file")
	flag.IntVar(&nGroups, "groups", 0, "Number of groups (overrides the config file)")
	flag.IntVar(&nTables, "tables", 0, "Number of tables (overrides the config file)")
	flag.StringVar(&logFile, "log", "", "State log file, standard output if empty")
	flag.StringVar(&eventFile, "events", "", "JSON-lines event file")
	flag.StringVar(&persistDir, "persist", "", "Badger directory to store snapshots in")
	flag.StringVar(&historyFile, "history", "", "HTML file for the table history visualization")
	flag.BoolVar(&debug, "debug", false, "Log every request")
	flag.StringVar(&checkPath, "check", "", "Verify an existing state log and exit")
	flag.StringVar(&profileMode, "profile", "", "Profile the run (cpu or mem)")

	flag.Parse()

	c := configs.Default(shm.MaxGroups, 2)
	if configPath != "" {
		var err error
		c, err = configs.ReadConfig(configPath)
		if err != nil {
			log.Fatal(err)
		}
	}
	if nGroups != 0 {
		c.NumGroups = nGroups
	}
	if nTables != 0 {
		c.NumTables = nTables
	}
	if logFile != "" {
		c.LogFile = logFile
	}
	if eventFile != "" {
		c.EventFile = eventFile
	}
	if persistDir != "" {
		c.PersistDir = persistDir
	}
	if historyFile != "" {
		c.HistoryFile = historyFile
	}
	c.Debug = c.Debug || debug

	if checkPath != "" {
		if err := check(checkPath, c.NumTables); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := run(c, profileMode); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
