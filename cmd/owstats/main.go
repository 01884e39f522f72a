// owstats reads a completed OWAMP or TWAMP session file and prints a
// summary of its statistics, either human-readable or machine-readable.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"

	"github.com/m-lab/owstats/driver"
	"github.com/m-lab/owstats/report"
	"github.com/m-lab/owstats/schedule"
	"github.com/m-lab/owstats/sessionfile"
)

var (
	filename    = flag.String("filename", "", "session file path")
	fromLabel   = flag.String("from", "", "display label for the sending endpoint")
	toLabel     = flag.String("to", "", "display label for the receiving endpoint")
	scaleChar   = flag.String("scale", "m", "delay scale: n, u, m, or s")
	bucketWidth = flag.Float64("bucket-width", 0.0001, "delay histogram bucket width, in seconds")
	machine     = flag.Bool("machine", false, "print the machine-readable report instead of the human-readable one")
	percentiles = flag.String("percentiles", "", "comma-separated additional percentiles to report (0-100)")
)

func main() {
	flag.Parse()
	flagx.ArgsFromEnv(flag.CommandLine)

	if *filename == "" {
		fmt.Fprintln(os.Stderr, "owstats: -filename is required")
		os.Exit(1)
	}

	f, err := os.Open(*filename)
	rtx.Must(err, "could not open session file %q", *filename)
	defer f.Close()

	peek, err := sessionfile.Open(f)
	rtx.Must(err, "could not read session header from %q", *filename)
	hdr := peek.Header()

	sched := schedule.NewExpGenerator(hdr.SID, hdr.Spec.Slots)
	d, err := driver.New(context.Background(), f, sched, *fromLabel, *toLabel, *bucketWidth)
	rtx.Must(err, "could not open session %q", *filename)
	defer d.Close()

	_, _, err = d.Parse(nil, 0, 0, driver.AllPackets)
	rtx.Must(err, "parse failed")

	pcts, err := parsePercentiles(*percentiles)
	rtx.Must(err, "invalid -percentiles value")

	s := d.Summary()
	if *machine {
		rtx.Must(report.PrintMachine(os.Stdout, s), "print_machine failed")
		return
	}
	scale := byte('m')
	if len(*scaleChar) > 0 {
		scale = (*scaleChar)[0]
	}
	rtx.Must(report.PrintSummary(os.Stdout, s, pcts, scale), "print_summary failed")
}

func parsePercentiles(csv string) ([]float64, error) {
	if csv == "" {
		return nil, nil
	}
	fields := strings.Split(csv, ",")
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		p, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("percentile %q: %w", f, err)
		}
		out = append(out, p)
	}
	return out, nil
}
