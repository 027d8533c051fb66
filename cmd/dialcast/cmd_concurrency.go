package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dialcast/internal/concurrency"
)

// concurrencyCmd shows the org concurrency quota
var concurrencyCmd = &cobra.Command{
	Use:   "concurrency",
	Short: "Show current concurrent-call usage against the org quota",
	RunE:  runConcurrency,
}

func runConcurrency(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	reading := concurrency.Fetch(ctx, newAPIClient())
	if !reading.Available {
		fmt.Println(reading.Message)
		return nil
	}

	fmt.Printf("Active:  %d\n", int(reading.Snapshot.Active))
	fmt.Printf("Allowed: %d\n", int(reading.Snapshot.Allowed))
	fmt.Printf("Level:   %s\n", reading.Level)
	fmt.Println(reading.Message)
	return nil
}
