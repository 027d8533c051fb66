package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dialcast/internal/schedule"
)

// scheduleCmd shows the agent's calling hours
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Show the agent's calling hours and whether dialing is open now",
	RunE:  runSchedule,
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	if cfg.Agent.ID == "" {
		return fmt.Errorf("no agent configured: set DIALCAST_AGENT_ID or agent.id in the config file")
	}

	model, err := schedule.Resolve(ctx, newAPIClient(), cfg.Agent.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Calling hours for agent %s:\n", cfg.Agent.ID)
	for _, line := range model.FormatDisplay() {
		fmt.Printf("  %s\n", line)
	}
	if model != nil && model.Timezone != "" {
		fmt.Printf("  (times in %s)\n", model.Timezone)
	}

	state := model.IsOpen(time.Now())
	if state.Open {
		fmt.Println("\nDialing is open right now.")
	} else {
		fmt.Println("\nDialing is closed right now.")
		if state.NextWindow != nil {
			fmt.Printf("Next window opens %s.\n", state.NextWindow.Format(time.RFC1123))
		}
	}
	return nil
}
