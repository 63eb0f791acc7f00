package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/shoetrack/internal/models"
	"github.com/iudanet/shoetrack/internal/validation"
)

func (a *App) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Aliases: []string{"runs"},
		Short:   "Log and review runs",
	}
	cmd.AddCommand(a.newRunLogCmd(), a.newRunListCmd(), a.newRunDeleteCmd())
	return cmd
}

func (a *App) newRunLogCmd() *cobra.Command {
	var (
		shoe     string
		runType  string
		date     string
		notes    string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "log <distance-km>",
		Short: "Log a run and add its distance to the shoes",
		Example: `  shoetrack run log 10.5 --shoe pegasus --type tempo --duration 52m
  shoetrack run log 21.1 --date "last sunday" --type long`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.cli
			ctx := cmd.Context()

			distance, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return &validation.FieldError{Field: "distance", Reason: fmt.Sprintf("not a number: %q", args[0])}
			}
			at, err := parseDate(date, c.now())
			if err != nil {
				return err
			}

			run := &models.Run{
				Date:            at,
				Distance:        distance,
				DurationSeconds: int64(duration.Round(time.Second) / time.Second),
				RunType:         models.RunType(runType),
				Notes:           notes,
			}
			if shoe != "" {
				s, err := a.findShoe(ctx, shoe)
				if err != nil {
					return err
				}
				run.ShoeID = s.ID
			}

			logged, err := c.Data.LogRun(ctx, run)
			if err != nil {
				return fmt.Errorf("failed to log run: %w", err)
			}
			c.IO.Printf("✓ Logged %s %s run on %s (%s)\n", km(logged.Distance), logged.RunType,
				logged.Date.Format(dateLayout), shortID(logged.ID))

			if logged.ShoeID != "" {
				if s, err := c.Data.GetShoe(ctx, logged.ShoeID); err == nil && s.WearPercent() >= 100 {
					c.IO.Printf("⚠️  %s has reached %.0f%% of its mileage limit\n", s.Name, s.WearPercent())
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&shoe, "shoe", "", "shoe id or name")
	f.StringVar(&runType, "type", string(models.RunEasy), "easy, tempo, interval, long, race, recovery or trail")
	f.StringVar(&date, "date", "", "run date: 2024-03-01, yesterday, \"last friday\" (default now)")
	f.StringVar(&notes, "notes", "", "notes")
	f.DurationVar(&duration, "duration", 0, "moving time, e.g. 52m30s")
	return cmd
}

func (a *App) newRunListCmd() *cobra.Command {
	var (
		shoe  string
		limit int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List runs, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.cli
			ctx := cmd.Context()

			var shoeID string
			if shoe != "" {
				s, err := a.findShoe(ctx, shoe)
				if err != nil {
					return err
				}
				shoeID = s.ID
			}

			runs, err := c.Data.ListRuns(ctx, shoeID)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			if len(runs) == 0 {
				c.IO.Println("No runs logged yet.")
				return nil
			}
			if limit > 0 && len(runs) > limit {
				runs = runs[:limit]
			}

			tw := table(c.IO, "ID", "DATE", "TYPE", "DISTANCE", "TIME", "PACE", "SHOE")
			for _, r := range runs {
				row(tw, shortID(r.ID), r.Date.Format(dateLayout), r.RunType, km(r.Distance),
					r.Duration(), pace(r.Pace()), shortID(r.ShoeID))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&shoe, "shoe", "", "only runs in these shoes")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show at most n runs, 0 for all")
	return cmd
}

func (a *App) newRunDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a run and subtract its distance from the shoes",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.findRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.cli.Data.DeleteRun(cmd.Context(), r.ID); err != nil {
				return fmt.Errorf("failed to delete run: %w", err)
			}
			a.cli.IO.Printf("✓ Run of %s on %s deleted\n", km(r.Distance), r.Date.Format(dateLayout))
			return nil
		},
	}
}
