// main.go — showrun reference binary (C12): runs one task pack once and
// prints its RunResult as JSON. §1 puts a full CLI UX out of scope; this
// exists only so C3-C6's BrowserController has something real driving it
// outside of tests (per SPEC_FULL.md's C12 entry), not as a general-purpose
// tool surface.
//
// Usage: showrun <packDir> [inputsJSON]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/eyupulker/showrun/internal/orchestrator"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the entry point, separated from main for testability.
func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: showrun <packDir> [inputsJSON]")
		return 2
	}
	packDir := args[0]

	inputs := map[string]any{}
	if len(args) > 1 {
		if err := json.Unmarshal([]byte(args[1]), &inputs); err != nil {
			fmt.Fprintf(os.Stderr, "invalid inputs JSON: %v\n", err)
			return 2
		}
	}

	cfg := orchestrator.LoadConfig()
	orch := orchestrator.New(cfg)

	result, paths, err := orch.Run(context.Background(), packDir, inputs, orchestrator.RunOptions{})
	if err != nil && !result.Success {
		fmt.Fprintf(os.Stderr, "run error: %v\n", err)
	}

	out, encErr := json.MarshalIndent(result, "", "  ")
	if encErr != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", encErr)
		return 1
	}
	fmt.Println(string(out))
	fmt.Fprintf(os.Stderr, "events: %s\n", paths.EventsPath)
	if paths.ScreenshotPath != "" {
		fmt.Fprintf(os.Stderr, "screenshot: %s\n", paths.ScreenshotPath)
	}

	if !result.Success {
		return 1
	}
	return 0
}
