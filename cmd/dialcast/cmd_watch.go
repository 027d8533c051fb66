package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dialcast/cmd/dialcast/ui"
	"dialcast/internal/campaign"
	"dialcast/internal/concurrency"
	"dialcast/internal/logging"
	"dialcast/internal/schedule"
)

var watchExportPath string

// watchCmd shows the live campaign dashboard
var watchCmd = &cobra.Command{
	Use:   "watch [campaignId]",
	Short: "Watch a campaign's calls complete in real time",
	Long: `Polls the calling API for the campaign's call statuses and renders a live
dashboard: progress, per-status counts, throughput, ETA and a recent
activity feed.

Watches the most recent campaign unless a campaign id is given.

Keys: r refresh now, p pause/resume polling, e export results to CSV,
q quit.

With --export the dashboard is skipped: results are polled once and
written straight to the given CSV file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchExportPath, "export", "", "Export results to this CSV file and exit (no dashboard)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	store := campaign.NewStore(cfg.DataDir)

	var record *campaign.Record
	var err error
	if len(args) == 1 {
		record, err = store.Get(args[0])
	} else {
		record, err = store.Latest()
	}
	if err != nil {
		return err
	}

	client := newAPIClient()

	// Auth problems surface here, before any dashboard is drawn.
	scheduleModel, err := schedule.Resolve(ctx, client, record.AgentID)
	if err != nil {
		return err
	}

	watcher := campaign.NewWatcher(client, record, cfg.Watch.PageSize)

	if watchExportPath != "" {
		if err := watcher.Refresh(ctx); err != nil {
			return fmt.Errorf("failed to fetch results: %w", err)
		}
		if err := watcher.ExportResults(watchExportPath); err != nil {
			return err
		}
		fmt.Printf("Exported %s to %s\n", record.CampaignID, watchExportPath)
		return nil
	}

	reading := concurrency.Fetch(ctx, client)
	advisors := ui.Advisors{
		Schedule:    scheduleAdvisorLine(scheduleModel),
		Concurrency: reading.Message,
	}

	exportPath := fmt.Sprintf("%s_results.csv", record.CampaignID)
	model := ui.NewWatchModel(watcher, cfg.GetPollInterval(), exportPath, advisors)
	program := tea.NewProgram(model, tea.WithAltScreen())

	stopReload := watchRecordFile(store, record.CampaignID, program)
	defer stopReload()

	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run dashboard: %w", err)
	}
	return nil
}

func scheduleAdvisorLine(model *schedule.Model) string {
	state := model.IsOpen(time.Now())
	if state.Open {
		return "calling hours open"
	}
	if state.NextWindow != nil {
		return fmt.Sprintf("calling hours closed, next window %s",
			state.NextWindow.Format("Mon 3:04PM"))
	}
	return "calling hours closed"
}

// watchRecordFile reloads the campaign record whenever its file changes, so
// a dispatch running in another terminal grows the dashboard's totals.
// Returns a stop func; file-watch setup failures only cost the live reload.
func watchRecordFile(store *campaign.Store, campaignID string, program *tea.Program) func() {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		logging.WatchError("file watcher unavailable: %v", err)
		return func() {}
	}
	path := store.Path(campaignID)
	if err := fw.Add(path); err != nil {
		logging.WatchError("cannot watch %s: %v", path, err)
		fw.Close()
		return func() {}
	}

	go func() {
		for {
			select {
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				record, err := store.Get(campaignID)
				if err != nil {
					logging.WatchDebug("record reload failed: %v", err)
					continue
				}
				logger.Debug("campaign record changed on disk",
					zap.String("campaign", campaignID))
				program.Send(ui.RecordReloadedMsg{Record: record})
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logging.WatchDebug("file watcher error: %v", err)
			}
		}
	}()
	return func() { fw.Close() }
}
