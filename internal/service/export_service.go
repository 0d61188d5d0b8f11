package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/YashBawari18/Online-TicketConsession/internal/models"
	appErrors "github.com/YashBawari18/Online-TicketConsession/pkg/errors"
	"github.com/YashBawari18/Online-TicketConsession/pkg/export"
)

// ApprovedExportTitle heads every approved-applications export.
const ApprovedExportTitle = "Approved Train Concession Applications"

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	ExportFormatPDF ExportFormat = "pdf"
	ExportFormatCSV ExportFormat = "csv"
)

var approvedHeaders = []string{
	"S.No.", "Student Name", "Form No.", "Year & Branch", "Route", "Class", "Railway", "Pass Type", "Applied Date",
}

var approvedWidths = []float64{12, 40, 26, 30, 48, 22, 32, 22, 24}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	Institution string
}

// ExportResult is a rendered export ready to be written or streamed.
type ExportResult struct {
	Filename    string
	ContentType string
	Format      ExportFormat
	Count       int
	Data        []byte
}

// ExportService renders the approved applications report.
type ExportService struct {
	source applicationSource
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
	cfg    ExportConfig
	now    func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers default to the built-in exporters.
func NewExportService(source applicationSource, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{source: source, csv: csv, pdf: pdf, logger: logger, cfg: cfg, now: time.Now}
}

// ParseExportFormat normalises a requested format. Empty means PDF.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ExportFormatPDF:
		return ExportFormatPDF, nil
	case ExportFormatCSV:
		return ExportFormatCSV, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "format must be pdf or csv")
}

// Approved renders every approved application, newest first, one row per record.
func (s *ExportService) Approved(ctx context.Context, format ExportFormat) (*ExportResult, error) {
	apps, err := s.source.List(ctx, models.StatusApproved)
	if err != nil {
		return nil, err
	}
	dataset := ApprovedDataset(apps)
	if s.cfg.Institution != "" {
		dataset.Notes = append(dataset.Notes, s.cfg.Institution)
	}
	dataset.Notes = append(dataset.Notes, fmt.Sprintf("Total Applications: %d", len(apps)))

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, ApprovedExportTitle)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be pdf or csv")
	}
	if err != nil {
		s.logger.Error("render approved export", zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &ExportResult{
		Filename:    fmt.Sprintf("approved_concessions_%s.%s", s.now().UTC().Format("2006-01-02"), format),
		ContentType: contentType,
		Format:      format,
		Count:       len(apps),
		Data:        payload,
	}, nil
}

// ApprovedDataset maps applications onto the export columns, preserving order.
func ApprovedDataset(apps []models.ConcessionApplication) export.Dataset {
	rows := make([][]string, 0, len(apps))
	for i, app := range apps {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			app.StudentName,
			app.ConcessionFormNo,
			fmt.Sprintf("%s %s", app.Year, app.Branch),
			fmt.Sprintf("%s - %s", app.FromStation, app.ToStation),
			string(app.ClassType),
			string(app.Railway),
			string(app.PassType),
			app.CreatedAt.Format("02/01/2006"),
		})
	}
	return export.Dataset{Headers: approvedHeaders, Rows: rows, Widths: approvedWidths}
}
