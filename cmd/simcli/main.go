package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/quantarax/cclsim/internal/scenario"
	"github.com/quantarax/cclsim/internal/simcore"
)

// runResult is the JSON shape printed to stdout (or written to -output):
// completion times per (chunk, node), per-port utilization, and the full
// trace if enabled.
type runResult struct {
	CompletionTimes map[string]map[string]float64    `json:"completion_times"`
	PortSummary     []simcore.PortUtilizationSummary `json:"port_summary"`
	Trace           []simcore.TraceRecord            `json:"trace,omitempty"`
}

func main() {
	output := flag.String("output", "", "Write results JSON to file (default: stdout)")
	pretty := flag.Bool("pretty", true, "Pretty-print JSON output")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: simcli [options] <scenario.json>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Options:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	scenarioPath := flag.Arg(0)
	data, err := os.ReadFile(scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: scenario file not found: %s\n", scenarioPath)
		os.Exit(2)
	}

	sc, err := scenario.Parse(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing scenario: %v\n", err)
		os.Exit(3)
	}

	edges, produced, policies, params, err := sc.ToBuildInputs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving scenario: %v\n", err)
		os.Exit(3)
	}

	fmt.Fprintf(os.Stderr, "Building simulation: %d edges, %d produced chunks, %d policies\n",
		len(edges), len(produced), len(policies))

	sim, err := simcore.Build(edges, produced, policies, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building simulation: %v\n", err)
		os.Exit(4)
	}

	if err := sim.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running simulation: %v\n", err)
		os.Exit(5)
	}

	result := runResult{
		CompletionTimes: sim.CompletionTimes(),
		PortSummary:     sim.Summary(),
	}
	if params.TraceEnabled {
		result.Trace = sim.Trace()
	}

	var jsonData []byte
	if *pretty {
		jsonData, err = json.MarshalIndent(result, "", "  ")
	} else {
		jsonData, err = json.Marshal(result)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error serializing results: %v\n", err)
		os.Exit(6)
	}

	if *output != "" {
		if err := os.WriteFile(*output, jsonData, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing to file: %v\n", err)
			os.Exit(7)
		}
		fmt.Fprintf(os.Stderr, "Results written to: %s\n", *output)
		return
	}
	fmt.Println(string(jsonData))
}
