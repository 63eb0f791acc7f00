package cli

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/shoetrack/internal/client/connectivity"
	"github.com/iudanet/shoetrack/internal/client/sync"
)

func (a *App) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stay running: watch connectivity and sync in the background",
		Long: "Stay running until interrupted. Queued changes are sent when the server " +
			"becomes reachable and periodically while it stays reachable.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.cli

			c.Monitor.OnChange(func(prev, next connectivity.State) {
				c.IO.Printf("[%s] connectivity: %s -> %s\n", c.now().Format("15:04:05"), prev, next)
			})
			c.Monitor.OnReconnect(func() {
				if c.Sync.RequestSync(sync.TriggerConnectivity) {
					c.IO.Printf("[%s] back online, syncing\n", c.now().Format("15:04:05"))
				}
			})

			c.IO.Println("Watching. Press Ctrl+C to stop.")

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				c.Monitor.Run(ctx)
				return nil
			})
			g.Go(func() error {
				c.Sync.Run(ctx)
				return nil
			})
			err := g.Wait()

			// фоновый проход мог стартовать от OnReconnect, хранилище закрывать рано
			c.Sync.Wait()
			c.IO.Println("Stopped.")
			return err
		},
	}
}
