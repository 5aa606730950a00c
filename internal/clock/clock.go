// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package clock supplies the second-resolution wall clock consulted by the
// window counters when deciding whether a bucket has expired.
package clock

import "time"

// Clock yields the current time. Callers compare instants only through
// Elapsed, which truncates their difference to whole seconds.
type Clock interface {
	Now() time.Time
}

// System is the production Clock, backed by time.Now (not truncated).
type System struct{}

func (System) Now() time.Time {
	return time.Now()
}

// Elapsed returns the whole number of seconds between two instants,
// truncating toward zero.
func Elapsed(since, now time.Time) int64 {
	return int64(now.Sub(since).Seconds())
}

// Fake is a controllable Clock for tests.
type Fake struct {
	t time.Time
}

// NewFake returns a Fake clock set to t.
func NewFake(t time.Time) *Fake {
	return &Fake{t: t}
}

func (f *Fake) Now() time.Time {
	return f.t
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.t = f.t.Add(d)
}

// Set pins the fake clock to t.
func (f *Fake) Set(t time.Time) {
	f.t = t
}
