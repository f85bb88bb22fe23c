// Package main provides the entry point for nugget.
// nugget records region-segmented basic-block vectors for sampled
// simulation.
//
// For the full CLI, use: go run ./cmd/bbvgen
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("nugget - region basic-block vector recorder")
	fmt.Println("")
	fmt.Println("Usage: bbvgen <command> [options]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run        Record one workload into a basic-block vector CSV")
	fmt.Println("  bench      Record every standard workload and report throughput")
	fmt.Println("  config     Write or check a session config file")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/bbvgen' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/bbvgen' instead.")
	}
}
