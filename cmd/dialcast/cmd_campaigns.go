package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"dialcast/internal/campaign"
)

// campaignsCmd lists stored campaigns
var campaignsCmd = &cobra.Command{
	Use:   "campaigns",
	Short: "List every recorded campaign",
	RunE:  runCampaigns,
}

func runCampaigns(cmd *cobra.Command, args []string) error {
	store := campaign.NewStore(cfg.DataDir)
	records, err := store.List()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No campaigns recorded yet. Run 'dialcast dispatch <calls.csv>' first.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Campaign", "Source", "Agent", "Calls", "Created", "Updated"})
	for _, record := range records {
		t.AppendRow(table.Row{
			record.CampaignID,
			record.SourceIdentity,
			record.AgentID,
			record.TotalCalls,
			record.CreatedAt.Local().Format("2006-01-02 15:04"),
			record.LastUpdated.Local().Format("2006-01-02 15:04"),
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	return nil
}
