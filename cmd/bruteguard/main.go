// Copyright 2017, Kerby Shedden and the Muscato contributors.

// bruteguard reads keyed event lines from stdin and maintains sliding
// abuse counters across three fixed time horizons (10 seconds, 1 minute,
// 10 minutes) backed by a counting-Bloom-filter-like
// structure. When a key's count in any window exceeds that window's
// configured threshold, bruteguard launches an external command with the
// literal KEY token replaced by the offending key.
//
// Usage:
//
//	bruteguard [-c capacity] [-e error_rate] [-config file] [-h] <t1> <t2> <t3> <cmd_template>
//
// See the -h output for the full option list and a worked example.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/kshedden/bruteguard/internal/clock"
	"github.com/kshedden/bruteguard/internal/config"
	"github.com/kshedden/bruteguard/internal/detector"
	"github.com/kshedden/bruteguard/internal/hashfam"
	"github.com/kshedden/bruteguard/internal/linebuf"
	"github.com/kshedden/bruteguard/internal/stats"
	"github.com/kshedden/bruteguard/internal/trigger"
	"github.com/kshedden/bruteguard/internal/window"
)

func main() {
	if err := run(os.Args[0], os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}
}

func run(prog string, args []string) error {
	for _, a := range args {
		if a == "-h" || a == "--help" {
			config.Usage(os.Stdout, prog)
			return nil
		}
	}

	cfg, err := config.Parse(prog, args)
	if err != nil {
		config.Usage(os.Stderr, prog)
		return err
	}

	logw, err := config.OpenLog(cfg.LogPath)
	if err != nil {
		return err
	}
	logger := log.New(logw, "", log.Ltime)

	runID := uuid.New()
	logger.Printf("bruteguard starting, run=%s capacity=%d error_rate=%v thresholds=%v",
		runID, cfg.Capacity, cfg.ErrorRate, cfg.Thresholds)

	k, m := hashfam.DeriveParams(cfg.Capacity, cfg.ErrorRate)
	family := hashfam.New(k, m)
	logger.Printf("hash family: k=%d m=%d", k, m)

	specs := make([]window.Spec, len(config.Periods))
	for i, p := range config.Periods {
		specs[i] = window.Spec{Period: p, Threshold: cfg.Thresholds[i]}
	}
	now := time.Now()
	counters := window.New(family, specs, now)

	sink, err := trigger.New(cfg.Template)
	if err != nil {
		return err
	}

	source := linebuf.New(os.Stdin)

	loop := &detector.Loop{
		Source:   source,
		Counters: counters,
		Sink:     sink,
		Clock:    clock.System{},
		Logger:   logger,
	}

	reporter := &stats.Reporter{Counters: counters, Logger: logger, Interval: 30 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		cancel()
	}()

	go reporter.Run(ctx)

	return loop.Run(ctx)
}
