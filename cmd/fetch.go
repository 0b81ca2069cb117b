package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/forest-watch/internal/model"
	"github.com/sells-group/forest-watch/internal/reconcile"
	"github.com/sells-group/forest-watch/internal/refresh"
	"github.com/sells-group/forest-watch/pkg/routes"
)

var (
	fetchRefresh    bool
	fetchCachedOnly bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the forest snapshot, refreshing if stale",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := env.Coordinator.Get(ctx, refresh.GetOptions{
			ForceRefresh:     fetchRefresh,
			PreferCachedOnly: fetchCachedOnly,
			OnProgress: func(phase reconcile.Phase, completed, total int) {
				zap.L().Info("progress",
					zap.String("phase", string(phase)),
					zap.Int("completed", completed),
					zap.Int("total", total))
			},
		})
		if err != nil {
			return err
		}

		if cfg.Routes.Enabled {
			if err := attachRoutes(ctx, env, snap); err != nil {
				zap.L().Warn("route estimates failed", zap.Error(err))
			}
		}

		printSummary(snap)
		return nil
	},
}

// attachRoutes fills driving estimates for every mapped forest in one table
// call and persists the updated snapshot.
func attachRoutes(ctx context.Context, e *env, snap *model.Snapshot) error {
	origin := routes.Point{Latitude: cfg.Routes.OriginLat, Longitude: cfg.Routes.OriginLon}
	if origin.Latitude == 0 && origin.Longitude == 0 {
		return eris.New("routes enabled but no origin configured")
	}

	var idx []int
	var dests []routes.Point
	for i := range snap.Forests {
		if c := snap.Forests[i].Coordinates; c != nil {
			idx = append(idx, i)
			dests = append(dests, routes.Point{Latitude: c.Latitude, Longitude: c.Longitude})
		}
	}
	if len(dests) == 0 {
		return nil
	}

	client := routes.NewClient(routes.WithBaseURL(cfg.Routes.BaseURL))
	estimates, err := client.Table(ctx, origin, dests)
	if err != nil {
		return err
	}
	for j, est := range estimates {
		if est.Found {
			snap.Forests[idx[j]].Route = &model.RouteEstimate{
				DistanceKm:      est.DistanceKm,
				DurationMinutes: est.DurationMinutes,
			}
		}
	}
	return e.Store.SaveSnapshot(ctx, snap)
}

func printSummary(snap *model.Snapshot) {
	banned := 0
	for i := range snap.Forests {
		if snap.Forests[i].BanStatus == model.BanStatusBanned {
			banned++
		}
	}
	fmt.Printf("snapshot: %d forests (%d mapped, %d banned), fetched %s",
		len(snap.Forests), snap.MappedCount(), banned, snap.FetchedAt.Format("2006-01-02 15:04 MST"))
	if snap.Stale {
		fmt.Print(" [STALE]")
	}
	fmt.Println()
	for _, w := range snap.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchRefresh, "refresh", false, "force a refresh even if the snapshot is fresh")
	fetchCmd.Flags().BoolVar(&fetchCachedOnly, "cached-only", false, "serve the cached snapshot without refreshing")
	rootCmd.AddCommand(fetchCmd)
}
