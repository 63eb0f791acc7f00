package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/iudanet/shoetrack/internal/client/auth"
	"github.com/iudanet/shoetrack/internal/models"
)

func (a *App) newStatusCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show login, connectivity and sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.cli
			ctx := cmd.Context()

			c.IO.Println("=== Account ===")
			data, err := c.Auth.Current(ctx)
			switch {
			case errors.Is(err, auth.ErrNotAuthenticated):
				c.IO.Println("Not logged in. Run 'shoetrack login'.")
			case err != nil:
				return fmt.Errorf("failed to read auth data: %w", err)
			case data.Expired(c.now()):
				c.IO.Printf("User: %s (token expired, run 'shoetrack login')\n", data.Username)
			default:
				c.IO.Printf("User: %s, token expires %s\n", data.Username, ago(data.ExpiresAt))
			}

			c.IO.Println()
			c.IO.Println("=== Connectivity ===")
			if offline {
				c.IO.Println("Not checked")
			} else {
				state := c.Monitor.Probe(ctx)
				c.IO.Printf("Server: %s (%.0f%% of recent requests succeeded)\n", state, c.Monitor.Reachability()*100)
			}

			st, err := c.Sync.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to read sync status: %w", err)
			}

			c.IO.Println()
			c.IO.Println("=== Sync ===")
			c.IO.Printf("State: %s\n", st.State)
			c.IO.Printf("Last sync: %s\n", ago(st.LastSyncAt))
			if st.PendingOperations == 0 {
				c.IO.Println("✓ All changes synced")
			} else {
				q := st.Queue
				c.IO.Printf("Pending: %d change(s)\n", st.PendingOperations)
				c.IO.Printf("  ready %d, background %d, waiting %d, ran out of attempts %d, blocked by conflict %d\n",
					q.Immediate, q.Background, q.Deferred-q.Exhausted, q.Exhausted, q.Parked)
			}
			if st.Conflicts > 0 {
				c.IO.Printf("⚠️  %d conflict(s), see 'shoetrack conflicts'\n", st.Conflicts)
			}
			if st.Errors > 0 {
				c.IO.Printf("%d logged sync error(s), see 'shoetrack errors'\n", st.Errors)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the server check")
	return cmd
}

func (a *App) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show local cache usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.cli
			ctx := cmd.Context()

			stats, err := c.Stats.Stats(ctx)
			if err != nil {
				return fmt.Errorf("failed to collect stats: %w", err)
			}

			tw := table(c.IO, "TYPE", "RECORDS", "UNSYNCED", "SIZE")
			for _, t := range models.EntityTypes {
				ts := stats.Types[t]
				row(tw, t, ts.Count, ts.Dirty, bytesOf(ts.Bytes))
			}
			row(tw, "total", stats.TotalCount, stats.TotalDirty, bytesOf(stats.TotalBytes))
			if err := tw.Flush(); err != nil {
				return err
			}

			size, limit, err := c.Usage.Usage(ctx)
			if err != nil {
				return err
			}
			c.IO.Println()
			if limit > 0 {
				c.IO.Printf("Database file: %s of %s (%.0f%%)\n", bytesOf(size), bytesOf(limit), float64(size)/float64(limit)*100)
			} else {
				c.IO.Printf("Database file: %s\n", bytesOf(size))
			}
			return nil
		},
	}
}

func (a *App) newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Summary of mileage, recent runs and shoe wear",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.cli
			d, err := c.Dashboard.Build(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to build dashboard: %w", err)
			}

			c.IO.Printf("Runs: %d total, %d in 7 days, %d in 30 days\n", d.TotalRuns, d.RunsLast7Days, d.RunsLast30Days)
			c.IO.Printf("Distance: %s total, %s in 7 days\n", km(d.TotalDistance), km(d.DistanceLast7Days))
			if d.AvgRecentDistance > 0 {
				c.IO.Printf("Average recent run: %s\n", km(d.AvgRecentDistance))
			}

			if len(d.DistanceByType) > 0 {
				c.IO.Println()
				tw := table(c.IO, "TYPE", "DISTANCE")
				for _, t := range models.RunTypes {
					if v, ok := d.DistanceByType[t]; ok {
						row(tw, t, km(v))
					}
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			c.IO.Println()
			c.IO.Printf("Shoes: %d active, %d retired\n", d.ActiveShoes, d.RetiredShoes)
			if len(d.Shoes) > 0 {
				tw := table(c.IO, "NAME", "BRAND", "MILEAGE", "WEAR")
				for _, s := range d.Shoes {
					row(tw, s.Name, s.Brand, fmt.Sprintf("%s / %s", km(s.Mileage), km(s.MaxMileage)), fmt.Sprintf("%.0f%%", s.WearPercent))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			if len(d.WornOut) > 0 {
				names := make([]string, 0, len(d.WornOut))
				for _, s := range d.WornOut {
					names = append(names, s.Name)
				}
				slices.Sort(names)
				c.IO.Printf("⚠️  Time to replace: %v\n", names)
			}
			return nil
		},
	}
}
