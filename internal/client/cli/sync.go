package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/shoetrack/internal/client/auth"
	"github.com/iudanet/shoetrack/internal/client/conflict"
	"github.com/iudanet/shoetrack/internal/client/sync"
	"github.com/iudanet/shoetrack/internal/models"
)

// ErrSyncIncomplete проход завершился, но часть операций не отправлена
var ErrSyncIncomplete = errors.New("some changes were not synced")

func (a *App) newSyncCmd() *cobra.Command {
	var pull bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Send queued changes to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.cli
			ctx := cmd.Context()

			res := c.Sync.Sync(ctx, sync.TriggerManual)
			a.printResult(res)

			if pull && !res.AuthFailed {
				pr, err := c.Sync.Pull(ctx)
				if err != nil {
					return fmt.Errorf("failed to pull: %w", err)
				}
				a.printPull(pr)
			}
			return resultErr(res)
		},
	}
	cmd.Flags().BoolVar(&pull, "pull", true, "fetch server changes after sending")
	return cmd
}

func (a *App) newForceSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force-sync",
		Short: "Retry changes that ran out of attempts, then sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res := a.cli.Sync.ForceSyncNow(cmd.Context())
			a.printResult(res)
			return resultErr(res)
		},
	}
}

func (a *App) newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Fetch server records into the local cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pr, err := a.cli.Sync.Pull(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to pull: %w", err)
			}
			a.printPull(pr)
			return nil
		},
	}
}

func (a *App) printResult(res *sync.Result) {
	c := a.cli
	if res.Attempted == 0 && !res.AuthFailed {
		c.IO.Println("Nothing to sync.")
		return
	}

	c.IO.Printf("Sent %d of %d change(s) in %s\n", res.Succeeded, res.Attempted,
		res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	if res.Conflicts > 0 {
		c.IO.Printf("  %d conflict(s), see 'shoetrack conflicts'\n", res.Conflicts)
	}
	if res.Retried > 0 {
		c.IO.Printf("  %d will be retried automatically\n", res.Retried)
	}
	if res.Exhausted > 0 {
		c.IO.Printf("  %d ran out of attempts, run 'shoetrack force-sync'\n", res.Exhausted)
	}
	if res.Rejected > 0 {
		c.IO.Printf("  %d rejected by the server, see 'shoetrack errors'\n", res.Rejected)
	}
	if res.Deferred > 0 {
		c.IO.Printf("  %d waiting behind an earlier change\n", res.Deferred)
	}
	if res.AuthFailed {
		c.IO.Println("  Not authenticated, run 'shoetrack login'")
	}
}

func (a *App) printPull(pr *sync.PullResult) {
	a.cli.IO.Printf("Pulled: %d updated, %d unchanged, %d skipped (pending local changes), %d removed\n",
		pr.Updated, pr.Unchanged, pr.Skipped, pr.Evicted)
}

func resultErr(res *sync.Result) error {
	if res.AuthFailed {
		return auth.ErrNotAuthenticated
	}
	if res.State == sync.StateError {
		return ErrSyncIncomplete
	}
	return nil
}

func (a *App) newConflictsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "List changes that diverged from the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.cli
			conflicts, err := c.Conflicts.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list conflicts: %w", err)
			}
			if len(conflicts) == 0 {
				c.IO.Println("✓ No conflicts")
				return nil
			}

			tw := table(c.IO, "ID", "ENTITY", "CHANGE", "SERVER", "DETECTED")
			for _, cf := range conflicts {
				server := fmt.Sprintf("v%d", cf.RemoteVersion)
				if cf.RemoteDeleted {
					server += " (deleted)"
				}
				row(tw, shortID(cf.ID), models.EntityKey(cf.EntityType, shortID(cf.EntityID)), cf.Kind, server, ago(cf.DetectedAt))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			c.IO.Println()
			c.IO.Println("Resolve with 'shoetrack resolve <id> local|remote'.")
			return nil
		},
	}
}

func (a *App) newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "resolve <conflict-id> local|remote",
		Short:     "Keep the local change or take the server version",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(models.ResolveLocal), string(models.ResolveRemote)},
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.cli
			ctx := cmd.Context()

			choice := models.Resolution(args[1])
			if choice != models.ResolveLocal && choice != models.ResolveRemote {
				return fmt.Errorf("%w: got %q", conflict.ErrInvalidResolution, args[1])
			}
			cf, err := a.findConflict(ctx, args[0])
			if err != nil {
				return err
			}
			if _, err := c.Conflicts.Resolve(ctx, cf.ID, choice); err != nil {
				return fmt.Errorf("failed to resolve conflict: %w", err)
			}

			if choice == models.ResolveLocal {
				c.IO.Printf("✓ Keeping local %s, it will be sent on next sync\n", cf.Key())
			} else {
				c.IO.Printf("✓ Took server version of %s\n", cf.Key())
			}
			return nil
		},
	}
}

func (a *App) newErrorsCmd() *cobra.Command {
	list := func(cmd *cobra.Command, _ []string) error {
		c := a.cli
		errs, err := c.Sync.Errors(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read sync errors: %w", err)
		}
		if len(errs) == 0 {
			c.IO.Println("✓ No sync errors")
			return nil
		}

		tw := table(c.IO, "WHEN", "CLASS", "ENTITY", "ATTEMPT", "MESSAGE")
		for _, e := range errs {
			entity := "-"
			if e.EntityType != "" {
				entity = models.EntityKey(e.EntityType, shortID(e.EntityID))
			}
			row(tw, ago(e.OccurredAt), e.Class, entity, e.Attempt, e.Message)
		}
		return tw.Flush()
	}

	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Show the sync error log",
		Args:  cobra.NoArgs,
		RunE:  list,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Show the sync error log",
			Args:  cobra.NoArgs,
			RunE:  list,
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Clear the sync error log",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := a.cli.Sync.ClearSyncErrors(cmd.Context()); err != nil {
					return fmt.Errorf("failed to clear sync errors: %w", err)
				}
				a.cli.IO.Println("✓ Sync errors cleared")
				return nil
			},
		},
	)
	return cmd
}
