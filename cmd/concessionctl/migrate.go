package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YashBawari18/Online-TicketConsession/pkg/database"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.migrate(cmd, database.Up, 0)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.migrate(cmd, database.Down, steps)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "versions to roll back; 0 rolls back everything")

	cmd.AddCommand(up, down)
	return cmd
}

func (c *cli) migrate(cmd *cobra.Command, direction database.Direction, steps int) error {
	store, err := c.open(cmd.Context(), c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	version, err := store.Migrate(direction, steps)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
	return nil
}
