// Copyright 2017, Kerby Shedden and the Muscato contributors.

// run.go drives the compiled bruteguard binary against the literal
// concrete scenarios enumerated in the testable-properties section of the
// design, feeding timed lines to its stdin and counting how many times its
// trigger fired by watching a marker file the scenario's command template
// appends to. It is the integration counterpart to the package-level unit
// tests under internal/...; run it with:
//
//	go run ./tests -bin ./bruteguard
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path"
	"time"

	"github.com/kshedden/bruteguard/internal/config"
)

type Scenario struct {
	Name         string `toml:"name"`
	Thresholds   [3]int `toml:"thresholds"`
	Lines        []string
	DelaysMS     []int `toml:"delays_ms"`
	WantTriggers int   `toml:"want_triggers"`
}

type scenarioFile struct {
	Scenario []Scenario
}

var (
	logger *log.Logger
	binary string
)

func getScenarios(path string) []Scenario {
	var v scenarioFile
	if err := config.DecodeTOML(path, &v); err != nil {
		panic(err)
	}
	logger.Printf("found %d scenarios\n", len(v.Scenario))
	return v.Scenario
}

func runScenario(s Scenario) error {
	markerFile, err := os.CreateTemp("", "bruteguard_marker_*")
	if err != nil {
		return err
	}
	markerPath := markerFile.Name()
	markerFile.Close()
	defer os.Remove(markerPath)

	// Each firing runs awk once, which appends one empty line to the marker
	// file named by its first argument.
	template := fmt.Sprintf("awk BEGIN{print>>ARGV[1]} %s", markerPath)
	args := []string{
		fmt.Sprint(s.Thresholds[0]),
		fmt.Sprint(s.Thresholds[1]),
		fmt.Sprint(s.Thresholds[2]),
		template,
	}

	cmd := exec.Command(binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}

	w := bufio.NewWriter(stdin)
	for i, line := range s.Lines {
		if i < len(s.DelaysMS) && s.DelaysMS[i] > 0 {
			time.Sleep(time.Duration(s.DelaysMS[i]) * time.Millisecond)
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
		w.Flush()
	}
	// Give the last line's iteration time to be observed before we tear
	// the process down.
	time.Sleep(1500 * time.Millisecond)
	stdin.Close()
	cmd.Process.Kill()
	cmd.Wait()

	got := countLines(markerPath)
	if got != s.WantTriggers {
		return fmt.Errorf("scenario %q: got %d triggers, want %d", s.Name, got, s.WantTriggers)
	}
	return nil
}

func countLines(path string) int {
	fid, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer fid.Close()
	scanner := bufio.NewScanner(fid)
	n := 0
	for scanner.Scan() {
		n++
	}
	return n
}

func setupLog() {
	logger = log.New(os.Stderr, "", log.Ltime)
}

func main() {
	flag.StringVar(&binary, "bin", "./bruteguard", "path to the built bruteguard binary")
	scenarioPath := flag.String("scenarios", path.Join("tests", "scenarios.toml"), "path to scenarios.toml")
	flag.Parse()

	setupLog()
	scenarios := getScenarios(*scenarioPath)

	failed := 0
	for _, s := range scenarios {
		logger.Printf("running %q\n", s.Name)
		if err := runScenario(s); err != nil {
			logger.Printf("FAIL: %v\n", err)
			failed++
			continue
		}
		logger.Printf("ok\n")
	}

	if failed > 0 {
		os.Exit(1)
	}
}
