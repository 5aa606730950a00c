// Copyright 2017, Kerby Shedden and the Muscato contributors.

/*
bruteguard_gendat generates a synthetic, snappy-compressed log of keyed
event lines for manually exercising bruteguard without a live feed.

Most generated keys ("benign" clients) appear exactly once. A configurable
number of keys ("bursty" clients) appear numBurst times in rapid
succession, simulating the kind of repeated-request pattern bruteguard is
meant to catch.
*/
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path"

	"github.com/golang/snappy"
)

var (
	numBenign int
	numBursty int
	numBurst  int
	outDir    string
)

func main() {
	flag.IntVar(&numBenign, "benign", 1000, "number of single-request keys to generate")
	flag.IntVar(&numBursty, "bursty", 5, "number of keys that each issue a rapid burst of requests")
	flag.IntVar(&numBurst, "burst-size", 15, "number of requests issued per bursty key")
	flag.StringVar(&outDir, "dir", ".", "directory to write events.log.sz into")
	flag.Parse()

	if err := generate(); err != nil {
		fmt.Fprintf(os.Stderr, "bruteguard_gendat: %v\n", err)
		os.Exit(1)
	}
}

func generate() error {
	fname := path.Join(outDir, "events.log.sz")
	fid, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer fid.Close()

	w := snappy.NewBufferedWriter(fid)
	defer w.Close()
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	fmt.Printf("writing %d benign and %d bursty (x%d) keys to %s\n", numBenign, numBursty, numBurst, fname)

	for i := 0; i < numBenign; i++ {
		if _, err := fmt.Fprintf(bw, "%s req GET /\n", randomKey()); err != nil {
			return err
		}
	}

	for i := 0; i < numBursty; i++ {
		key := randomKey()
		for j := 0; j < numBurst; j++ {
			if _, err := fmt.Fprintf(bw, "%s req POST /login\n", key); err != nil {
				return err
			}
		}
	}

	return nil
}

func randomKey() string {
	return fmt.Sprintf("10.%d.%d.%d", rand.Intn(256), rand.Intn(256), rand.Intn(256))
}
