package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/YashBawari18/Online-TicketConsession/internal/bootstrap"
	"github.com/YashBawari18/Online-TicketConsession/pkg/config"
	"github.com/YashBawari18/Online-TicketConsession/pkg/logger"
)

type storeOpener func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*bootstrap.Store, error)

type cli struct {
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
	open   storeOpener
}

func newCLI() *cli {
	return &cli{
		out: os.Stdout,
		open: func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*bootstrap.Store, error) {
			return bootstrap.OpenStore(ctx, cfg, nil, logger)
		},
	}
}

func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "concessionctl",
		Short:         "Operator tasks for the train concession service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
	}
	cmd.SetOut(c.out)
	cmd.AddCommand(newMigrateCmd(c), newAdminCmd(c), newExportCmd(c))
	return cmd
}

func (c *cli) init() error {
	if c.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		c.cfg = cfg
	}
	if c.logger == nil {
		logr, err := logger.New(c.cfg)
		if err != nil {
			return err
		}
		c.logger = logr
	}
	return nil
}
