package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/forest-watch/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted snapshot without refreshing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := env.Store.LoadSnapshot(ctx)
		if err != nil {
			return err
		}
		if snap == nil {
			fmt.Println("no snapshot persisted yet; run fetch first")
			return nil
		}
		snap.Normalize()

		fmt.Printf("fetched:        %s\n", snap.FetchedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("schema version: %d (current %d)\n", snap.SchemaVersion, model.SchemaVersion)
		fmt.Printf("forests:        %d (%d mapped)\n", len(snap.Forests), snap.MappedCount())
		fmt.Printf("matches:        %d exact, %d fuzzy, %d unmatched\n",
			snap.FacilityMatches.Exact, len(snap.FacilityMatches.Fuzzy), len(snap.FacilityMatches.Unmatched))
		if snap.Stale {
			fmt.Println("stale:          yes")
		}
		for _, w := range snap.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
