package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/shoetrack/internal/models"
)

func (a *App) newCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collection",
		Aliases: []string{"collections", "col"},
		Short:   "Manage shoe collections",
	}
	cmd.AddCommand(a.newCollectionAddCmd(), a.newCollectionListCmd(), a.newCollectionArchiveCmd())
	return cmd
}

func (a *App) newCollectionAddCmd() *cobra.Command {
	var col models.Collection

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			col.Name = args[0]
			created, err := a.cli.Data.AddCollection(cmd.Context(), &col)
			if err != nil {
				return fmt.Errorf("failed to add collection: %w", err)
			}
			a.cli.IO.Printf("✓ Collection %q added (%s)\n", created.Name, shortID(created.ID))
			return nil
		},
	}
	cmd.Flags().StringVar(&col.Description, "description", "", "free-form description")
	cmd.Flags().StringVar(&col.Color, "color", "", "hex color, e.g. #ff8800")
	return cmd
}

func (a *App) newCollectionListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List collections",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.cli
			cols, err := c.Data.ListCollections(cmd.Context(), all)
			if err != nil {
				return fmt.Errorf("failed to list collections: %w", err)
			}
			if len(cols) == 0 {
				c.IO.Println("No collections yet. Use 'shoetrack collection add' to create one.")
				return nil
			}

			tw := table(c.IO, "ID", "NAME", "COLOR", "ARCHIVED", "DESCRIPTION")
			for _, col := range cols {
				row(tw, shortID(col.ID), col.Name, col.Color, yesNo(col.Archived), col.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include archived collections")
	return cmd
}

func (a *App) newCollectionArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <id|name>",
		Short: "Archive a collection; its shoes are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			col, err := a.findCollection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if _, err := a.cli.Data.ArchiveCollection(cmd.Context(), col.ID); err != nil {
				return fmt.Errorf("failed to archive collection: %w", err)
			}
			a.cli.IO.Printf("✓ Collection %q archived\n", col.Name)
			return nil
		},
	}
}
