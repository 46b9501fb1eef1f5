// ABOUTME: Entry point for the fleet CLI
// ABOUTME: Signs in to the Fleet Dashboard and supervises the session lifecycle

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/markalston/fleet-dashboard/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var code cmd.ExitCode
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
