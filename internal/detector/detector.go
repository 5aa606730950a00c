// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package detector implements the event loop that ties together the line
// reader, window counter, and trigger sink: poll for input up to one
// second, drain and observe every buffered line, fire triggers for any
// window whose count exceeds its threshold, then run the scheduled window
// resets.
package detector

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kshedden/bruteguard/internal/clock"
	"github.com/kshedden/bruteguard/internal/linebuf"
	"github.com/kshedden/bruteguard/internal/window"
)

// PollInterval bounds how long a single iteration waits for input before
// falling through to the periodic reset check.
const PollInterval = 1 * time.Second

// LineSource is the minimal input contract the loop depends on: Fill
// performs one read (blocking up to the caller's discretion) and returns
// the number of bytes appended, or an error.
type LineSource interface {
	Fill() (int, error)
	Next() (line []byte, ok bool, err error)
}

// TriggerSink is the minimal output contract: Fire launches the configured
// action for an offending key.
type TriggerSink interface {
	Fire(key string) error
}

// Loop is the detector's single-threaded, cooperative event loop. Exactly
// one suspension point exists, matching the source's poll(..., 1000): a
// single background goroutine owns the Source's blocking Fill call across
// the whole lifetime of Run, handing completed reads back to the loop in
// lockstep so that only ever one Fill call is in flight and the Source's
// internal buffer is never touched from two goroutines at once.
type Loop struct {
	Source   LineSource
	Counters *window.Counters
	Sink     TriggerSink
	Clock    clock.Clock
	Logger   *log.Logger

	fillDone chan error
	resume   chan struct{}
}

// Run drives the loop until ctx is cancelled or a fatal error occurs. Each
// iteration waits up to PollInterval for input; when input arrives, every
// currently-parseable line is drained and observed before any trigger
// fires, and the scheduled reset check runs at the end of the iteration
// regardless of whether input arrived.
func (l *Loop) Run(ctx context.Context) error {
	l.fillDone = make(chan error)
	l.resume = make(chan struct{})
	go l.fillWorker(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		gotFill, fillErr := l.awaitFill(ctx)
		if !gotFill {
			// Timed out waiting for input; the background Fill call is
			// still outstanding and the buffer is untouched, so there is
			// nothing new to drain this round.
			l.Counters.MaybeReset(l.Clock.Now())
			continue
		}

		if fillErr == nil {
			for {
				line, ok, err := l.Source.Next()
				if err != nil {
					return fmt.Errorf("detector: %w", err)
				}
				if !ok {
					break
				}
				if err := l.handleLine(line); err != nil {
					return err
				}
			}
		}

		l.Counters.MaybeReset(l.Clock.Now())

		if fillErr != nil {
			return fmt.Errorf("detector: %w", fillErr)
		}

		// Let the worker issue its next Fill call now that we are done
		// touching the buffer for this round.
		select {
		case l.resume <- struct{}{}:
		case <-ctx.Done():
			return nil
		}
	}
}

// fillWorker is the sole goroutine that ever calls Source.Fill. It
// performs one Fill, reports the result, then waits to be told to proceed
// before performing the next one, so Run never needs to spawn a fresh
// goroutine per poll and never overlaps two Fill calls.
func (l *Loop) fillWorker(ctx context.Context) {
	for {
		_, err := l.Source.Fill()

		select {
		case l.fillDone <- err:
		case <-ctx.Done():
			return
		}

		if err != nil {
			return
		}

		select {
		case <-l.resume:
		case <-ctx.Done():
			return
		}
	}
}

// awaitFill waits up to PollInterval for the worker's in-flight Fill call
// to complete. gotFill is false on a plain timeout, in which case the
// worker is left outstanding and will be awaited again on the next
// iteration rather than abandoned.
func (l *Loop) awaitFill(ctx context.Context) (gotFill bool, err error) {
	select {
	case err := <-l.fillDone:
		return true, err
	case <-time.After(PollInterval):
		return false, nil
	case <-ctx.Done():
		return false, nil
	}
}

// handleLine observes the line across every window before checking any
// threshold, then fires the sink once per window whose count exceeds its
// threshold. A trigger fires every time a count crosses or remains above
// threshold, not only on the first crossing.
func (l *Loop) handleLine(line []byte) error {
	counts := l.Counters.Observe(line)
	key := string(line)
	for i, c := range counts {
		if c > l.Counters.Threshold(i) {
			if l.Logger != nil {
				l.Logger.Printf("threshold reached for %s (window %d: %d > %d)", key, i, c, l.Counters.Threshold(i))
			}
			if err := l.Sink.Fire(key); err != nil {
				return fmt.Errorf("detector: trigger: %w", err)
			}
		}
	}
	return nil
}
