package detector

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/kshedden/bruteguard/internal/clock"
	"github.com/kshedden/bruteguard/internal/hashfam"
	"github.com/kshedden/bruteguard/internal/linebuf"
	"github.com/kshedden/bruteguard/internal/window"
)

type fakeSink struct {
	calls []string
}

func (f *fakeSink) Fire(key string) error {
	f.calls = append(f.calls, key)
	return nil
}

func newCounters(now time.Time) *window.Counters {
	k, m := hashfam.DeriveParams(1000, 0.01)
	family := hashfam.New(k, m)
	specs := []window.Spec{
		{Period: 10 * time.Second, Threshold: 2},
		{Period: 60 * time.Second, Threshold: 10},
		{Period: 600 * time.Second, Threshold: 50},
	}
	return window.New(family, specs, now)
}

func TestTriggerOnFirstWindow(t *testing.T) {
	base := time.Unix(0, 0)
	src := linebuf.New(strings.NewReader("1.2.3.4 req\n1.2.3.4 req\n1.2.3.4 req\n"))
	sink := &fakeSink{}
	fc := clock.NewFake(base)
	counters := newCounters(base)

	loop := &Loop{Source: src, Counters: counters, Sink: sink, Clock: fc}
	err := loop.Run(context.Background())
	if err == nil || !errors.Is(err, io.EOF) {
		t.Fatalf("expected the loop to terminate on upstream EOF, got %v", err)
	}

	if len(sink.calls) != 1 {
		t.Fatalf("expected exactly one trigger (on the third line), got %d: %v", len(sink.calls), sink.calls)
	}
	if sink.calls[0] != "1.2.3.4 req" {
		t.Fatalf("trigger key = %q, want %q", sink.calls[0], "1.2.3.4 req")
	}
}

func TestCrossWindowAccumulation(t *testing.T) {
	base := time.Unix(0, 0)
	var sb strings.Builder
	for i := 0; i < 11; i++ {
		sb.WriteString("5.5.5.5 req\n")
	}
	src := linebuf.New(strings.NewReader(sb.String()))
	sink := &fakeSink{}
	fc := clock.NewFake(base)
	counters := newCounters(base)

	loop := &Loop{Source: src, Counters: counters, Sink: sink, Clock: fc}
	_ = loop.Run(context.Background())

	// Window 0 (threshold 2) trips on observation 3 and every one after
	// it (observations 3-11, 11-2=9 firings), window 1 (threshold 10) trips once on
	// observation 11. 9 + 1 = 10 total trigger firings.
	if len(sink.calls) != 10 {
		t.Fatalf("expected 10 trigger firings across both windows, got %d", len(sink.calls))
	}
}

func TestNoTriggerBelowThreshold(t *testing.T) {
	base := time.Unix(0, 0)
	src := linebuf.New(strings.NewReader("8.8.8.8 req\n8.8.8.8 req\n"))
	sink := &fakeSink{}
	fc := clock.NewFake(base)
	counters := newCounters(base)

	loop := &Loop{Source: src, Counters: counters, Sink: sink, Clock: fc}
	_ = loop.Run(context.Background())

	if len(sink.calls) != 0 {
		t.Fatalf("expected no triggers for 2 observations against threshold 2, got %v", sink.calls)
	}
}
