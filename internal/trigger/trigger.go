// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package trigger renders a command template for an offending key and
// launches it as an external process.
//
// The template's first whitespace-delimited token is the program to run and
// the remaining tokens, after KEY substitution, are its argv. This
// deliberately departs from the original detector's system(3)-based
// shell execution: a key containing shell metacharacters (quotes,
// semicolons, backticks) would otherwise let an attacker inject arbitrary
// commands into the trigger. Templates here must be argv-shaped; there is
// no shell involved.
package trigger

import (
	"fmt"
	"os/exec"
	"strings"
)

// MaxRendered is the maximum permitted length, in bytes, of the rendered
// command line.
const MaxRendered = 8192

// Token is the placeholder replaced by the offending key in a template.
const Token = "KEY"

// Sink launches rendered commands and does not wait for them to exit.
type Sink struct {
	Template string
}

// New validates that template is a usable argv-shaped command and returns a
// Sink for it.
func New(template string) (*Sink, error) {
	if strings.TrimSpace(template) == "" {
		return nil, fmt.Errorf("trigger: empty command template")
	}
	return &Sink{Template: template}, nil
}

// Render substitutes every literal occurrence of KEY in the template with
// key and splits the result into argv on whitespace.
func Render(template string, key string) ([]string, error) {
	rendered := strings.ReplaceAll(template, Token, key)
	if len(rendered) > MaxRendered {
		return nil, fmt.Errorf("trigger: rendered command exceeds %d bytes", MaxRendered)
	}
	argv := strings.Fields(rendered)
	if len(argv) == 0 {
		return nil, fmt.Errorf("trigger: rendered command is empty")
	}
	return argv, nil
}

// Fire renders the sink's template for key and starts the resulting
// process without waiting for it to complete. A failure to launch the
// process is returned to the caller, which per the detector's error model
// treats it as fatal.
func (s *Sink) Fire(key string) error {
	argv, err := Render(s.Template, key)
	if err != nil {
		return err
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("trigger: failed to launch %q: %w", argv[0], err)
	}
	go cmd.Wait() // reap the child; the detector never waits on it
	return nil
}
