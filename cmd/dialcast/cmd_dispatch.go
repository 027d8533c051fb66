package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dialcast/internal/api"
	"dialcast/internal/campaign"
	"dialcast/internal/dispatch"
	"dialcast/internal/schedule"
)

// dispatchCmd sends a CSV of call requests in paced batches
var dispatchCmd = &cobra.Command{
	Use:   "dispatch <calls.csv>",
	Short: "Dispatch a batch of outbound calls from a CSV file",
	Long: `Reads call requests from a CSV file and submits them to the calling API
in fixed-size batches with a pacing delay between batches.

Endpoints already enrolled in the campaign for this file are skipped, so
re-running the same file only dispatches new rows. Successes are merged
into the campaign record under the data directory.

Example:
  dialcast dispatch leads.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runDispatch,
}

func runDispatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	if cfg.Agent.ID == "" {
		return fmt.Errorf("no agent configured: set DIALCAST_AGENT_ID or agent.id in the config file")
	}

	requests, sourceIdentity, err := loadCallsFile(args[0])
	if err != nil {
		return err
	}
	logger.Info("loaded calls file",
		zap.String("source", sourceIdentity),
		zap.Int("rows", len(requests)))

	store := campaign.NewStore(cfg.DataDir)
	enrolled, err := store.EnrolledEndpoints(sourceIdentity)
	if err != nil {
		return fmt.Errorf("failed to read campaign store: %w", err)
	}

	fresh := make([]api.CallRequest, 0, len(requests))
	skipped := 0
	for _, req := range requests {
		if _, ok := enrolled[req.Endpoint]; ok {
			skipped++
			continue
		}
		fresh = append(fresh, req)
	}
	if skipped > 0 {
		fmt.Printf("Skipping %d endpoints already enrolled for %s\n", skipped, sourceIdentity)
	}
	if len(fresh) == 0 {
		fmt.Println("Nothing to dispatch: every endpoint is already enrolled.")
		return nil
	}

	client := newAPIClient()
	advise := adviseSchedule(ctx, client)

	d := dispatch.New(client, cfg.Agent.ID, cfg.Dispatch.BatchSize, cfg.GetBatchDelay())
	fmt.Printf("Dispatching %d calls in batches of %d...\n", len(fresh), cfg.Dispatch.BatchSize)
	result := d.Run(ctx, fresh)

	if len(result.Created) > 0 {
		record, err := store.Merge(result.Created, cfg.Agent.ID, sourceIdentity)
		if err != nil {
			return fmt.Errorf("calls were dispatched but the campaign record could not be saved: %w", err)
		}
		fmt.Printf("Campaign %s now tracks %d calls.\n", record.CampaignID, record.TotalCalls)
	}

	printDispatchSummary(result)
	advise()
	return result.ExitError()
}

func printDispatchSummary(result *dispatch.Result) {
	fmt.Printf("\nDispatched: %d succeeded, %d failed (of %d attempted)\n",
		result.Succeeded, result.Failed, result.Attempted)

	if status, count, ok := result.PrimaryFailure(); ok {
		fmt.Printf("Dominant failure: HTTP %d (%d batches)\n", status, count)
	} else if len(result.Errors) > 0 {
		for _, rec := range result.Errors {
			fmt.Printf("  batch %d: %s\n", rec.Chunk, rec.Message)
		}
	}

	if result.EarliestScheduled != nil {
		fmt.Printf("Earliest scheduled call: %s\n",
			result.EarliestScheduled.Local().Format(time.RFC1123))
	}
}

// adviseSchedule checks calling hours in the background while the dispatch
// runs and returns a func that prints the advisory afterwards. The check is
// advisory only; a closed schedule never blocks a dispatch.
func adviseSchedule(ctx context.Context, client *api.Client) func() {
	type answer struct {
		model *schedule.Model
		err   error
	}
	ch := make(chan answer, 1)
	go func() {
		model, err := schedule.Resolve(ctx, client, cfg.Agent.ID)
		ch <- answer{model, err}
	}()

	return func() {
		a := <-ch
		if a.err != nil || a.model == nil {
			return
		}
		state := a.model.IsOpen(time.Now())
		if state.Open {
			return
		}
		fmt.Println("\nNote: the agent's calling hours are currently closed.")
		if state.NextWindow != nil {
			fmt.Printf("Calls will begin at %s.\n", state.NextWindow.Format(time.RFC1123))
		}
	}
}
