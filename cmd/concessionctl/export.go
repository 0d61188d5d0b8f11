package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/YashBawari18/Online-TicketConsession/internal/repository"
	"github.com/YashBawari18/Online-TicketConsession/internal/service"
	"github.com/YashBawari18/Online-TicketConsession/pkg/export"
)

func newExportCmd(c *cli) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the approved applications report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := service.ParseExportFormat(format)
			if err != nil {
				return err
			}
			store, err := c.open(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			concessions := service.NewConcessionService(repository.NewConcessionRepository(store.Gateway), validator.New(), c.logger)
			exporter := service.NewExportService(concessions, service.ExportConfig{Institution: c.cfg.Export.Institution}, c.logger,
				export.NewCSVExporter(), export.NewPDFExporter())
			result, err := exporter.Approved(cmd.Context(), parsed)
			if err != nil {
				return err
			}

			if out == "" {
				out = result.Filename
			}
			if err := os.WriteFile(out, result.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d applications to %s\n", result.Count, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "pdf", "pdf or csv")
	cmd.Flags().StringVar(&out, "out", "", "output file (default: generated name)")
	return cmd
}
