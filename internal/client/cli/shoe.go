package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/shoetrack/internal/models"
)

// DefaultMaxMileage ресурс кроссовок по умолчанию, км
const DefaultMaxMileage = 800

func (a *App) newShoeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "shoe",
		Aliases: []string{"shoes"},
		Short:   "Manage shoes",
	}
	cmd.AddCommand(
		a.newShoeAddCmd(),
		a.newShoeListCmd(),
		a.newShoeShowCmd(),
		a.newShoeRetireCmd(),
		a.newShoeDeleteCmd(),
	)
	return cmd
}

func (a *App) newShoeAddCmd() *cobra.Command {
	var (
		shoe       models.Shoe
		collection string
		purchased  string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a pair of shoes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.cli
			ctx := cmd.Context()
			shoe.Name = args[0]

			if collection != "" {
				col, err := a.findCollection(ctx, collection)
				if err != nil {
					return err
				}
				shoe.CollectionID = col.ID
			}
			if purchased != "" {
				d, err := parseDate(purchased, c.now())
				if err != nil {
					return err
				}
				shoe.PurchaseDate = &d
			}

			created, err := c.Data.AddShoe(ctx, &shoe)
			if err != nil {
				return fmt.Errorf("failed to add shoe: %w", err)
			}
			c.IO.Printf("✓ Shoe %q added (%s), limit %s\n", created.Name, shortID(created.ID), km(created.MaxMileage))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&shoe.Brand, "brand", "", "manufacturer")
	f.StringVar(&shoe.Model, "model", "", "model name")
	f.StringVar(&shoe.Notes, "notes", "", "notes")
	f.StringVar(&collection, "collection", "", "collection id or name")
	f.StringVar(&purchased, "purchased", "", "purchase date: 2024-03-01, \"last monday\"...")
	f.Float64Var(&shoe.MaxMileage, "max-mileage", DefaultMaxMileage, "retirement mileage, km")
	f.Float64Var(&shoe.CurrentMileage, "mileage", 0, "mileage already on the shoes, km")
	f.Float64Var(&shoe.PurchasePrice, "price", 0, "purchase price")
	return cmd
}

func (a *App) newShoeListCmd() *cobra.Command {
	var (
		all        bool
		collection string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List shoes with their wear",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.cli
			ctx := cmd.Context()

			var collectionID string
			if collection != "" {
				col, err := a.findCollection(ctx, collection)
				if err != nil {
					return err
				}
				collectionID = col.ID
			}

			shoes, err := c.Data.ListShoes(ctx, collectionID, all)
			if err != nil {
				return fmt.Errorf("failed to list shoes: %w", err)
			}
			if len(shoes) == 0 {
				c.IO.Println("No shoes yet. Use 'shoetrack shoe add' to add a pair.")
				return nil
			}

			tw := table(c.IO, "ID", "NAME", "BRAND", "MILEAGE", "LIMIT", "WEAR", "RETIRED")
			for _, s := range shoes {
				row(tw, shortID(s.ID), s.Name, s.Brand, km(s.CurrentMileage), km(s.MaxMileage),
					fmt.Sprintf("%.0f%%", s.WearPercent()), yesNo(s.Retired))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include retired shoes")
	cmd.Flags().StringVar(&collection, "collection", "", "only shoes from this collection")
	return cmd
}

func (a *App) newShoeShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|name>",
		Short: "Show one pair and its runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.cli
			ctx := cmd.Context()
			s, err := a.findShoe(ctx, args[0])
			if err != nil {
				return err
			}

			c.IO.Printf("%s (%s)\n", s.Name, s.ID)
			if s.Brand != "" || s.Model != "" {
				c.IO.Printf("  %s %s\n", s.Brand, s.Model)
			}
			c.IO.Printf("  Mileage: %s of %s (%.0f%%)\n", km(s.CurrentMileage), km(s.MaxMileage), s.WearPercent())
			if s.PurchaseDate != nil {
				c.IO.Printf("  Purchased: %s\n", s.PurchaseDate.Format(dateLayout))
			}
			if s.Retired {
				c.IO.Println("  Retired")
			}
			if s.Notes != "" {
				c.IO.Printf("  Notes: %s\n", s.Notes)
			}

			runs, err := c.Data.ListRuns(ctx, s.ID)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			c.IO.Printf("  Runs: %d\n", len(runs))
			return nil
		},
	}
}

func (a *App) newShoeRetireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retire <id|name>",
		Short: "Retire a pair; it stays in history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.findShoe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if _, err := a.cli.Data.RetireShoe(cmd.Context(), s.ID); err != nil {
				return fmt.Errorf("failed to retire shoe: %w", err)
			}
			a.cli.IO.Printf("✓ Shoe %q retired at %s\n", s.Name, km(s.CurrentMileage))
			return nil
		},
	}
}

func (a *App) newShoeDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <id|name>",
		Aliases: []string{"rm"},
		Short:   "Delete a pair without logged runs",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.cli
			s, err := a.findShoe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !yes {
				ok, err := c.IO.Confirm(fmt.Sprintf("Delete shoe %q?", s.Name))
				if err != nil {
					return err
				}
				if !ok {
					c.IO.Println("Cancelled")
					return nil
				}
			}
			if err := c.Data.DeleteShoe(cmd.Context(), s.ID); err != nil {
				return fmt.Errorf("failed to delete shoe: %w", err)
			}
			c.IO.Printf("✓ Shoe %q deleted\n", s.Name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
