package export

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hc1200093-glitch/L-eclaireur/internal/models"
	"go.uber.org/zap"
)

const (
	// CombinedBaseFilename names reports built from several documents.
	CombinedBaseFilename = "rapport_combine"
	fallbackBaseFilename = "rapport_analyse"

	reportSuffix  = "_rapport"
	singleTitle   = "Rapport d'Analyse - "
	combinedTitle = "Rapport d'Analyse Combiné"
)

type formatSpec struct {
	ext         string
	contentType string
	encode      Encoder
}

var formats = map[models.ExportFormat]formatSpec{
	models.FormatPDF:  {"pdf", "application/pdf", EncodePDF},
	models.FormatDOCX: {"docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", EncodeDOCX},
	models.FormatTXT:  {"txt", "text/plain; charset=utf-8", EncodeText},
	models.FormatHTML: {"html", "text/html; charset=utf-8", EncodeHTML},
	models.FormatRTF:  {"rtf", "application/rtf", EncodeRTF},
}

// Formats lists the supported tags in a stable order.
func Formats() []models.ExportFormat {
	out := make([]models.ExportFormat, 0, len(formats))
	for f := range formats {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseFormat resolves a case-insensitive format tag.
func ParseFormat(tag string) (models.ExportFormat, error) {
	f := models.ExportFormat(strings.ToLower(strings.TrimSpace(tag)))
	if _, ok := formats[f]; !ok {
		return "", &models.ValidationError{Reason: models.ReasonUnknownExportFormat, Subject: tag}
	}
	return f, nil
}

// Filename returns "<base>_rapport.<ext>" for a supported format.
func Filename(base string, format models.ExportFormat) (string, error) {
	entry, ok := formats[format]
	if !ok {
		return "", &models.ValidationError{Reason: models.ReasonUnknownExportFormat, Subject: string(format)}
	}
	return base + reportSuffix + "." + entry.ext, nil
}

// BaseFilename derives the report base name from the analyzed documents: the
// only document's name without extension, or the combined name.
func BaseFilename(documents []string) string {
	if len(documents) > 1 {
		return CombinedBaseFilename
	}
	if len(documents) == 0 {
		return fallbackBaseFilename
	}
	name := filepath.Base(filepath.ToSlash(documents[0]))
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" || base == "." || base == "/" {
		return fallbackBaseFilename
	}
	return base
}

// NewJob builds the export job for result. documents are the staged file
// names that produced it, in submission order.
func NewJob(result *models.AnalysisResult, format models.ExportFormat, documents []string, at time.Time) models.ExportJob {
	base := BaseFilename(documents)
	multi := len(documents) > 1

	title := singleTitle + base
	if multi {
		title = combinedTitle
	}

	return models.ExportJob{
		Format:       format,
		BaseFilename: base,
		Title:        title,
		GeneratedAt:  at,
		Content:      result.Text,
		Attribution:  !multi,
	}
}

// Saver is the platform "save file" capability. It returns where the
// payload ended up.
type Saver interface {
	Save(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// Exporter encodes jobs and hands them to a saver.
type Exporter struct {
	product string
	log     *zap.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithProduct sets the product name used in signatures and footers.
func WithProduct(name string) Option {
	return func(e *Exporter) {
		if name != "" {
			e.product = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Exporter) { e.log = log.Named("export") }
}

// NewExporter creates an exporter.
func NewExporter(opts ...Option) *Exporter {
	e := &Exporter{product: DefaultProduct, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render encodes job without saving it.
func (e *Exporter) Render(ctx context.Context, job models.ExportJob) (*models.Report, error) {
	entry, ok := formats[job.Format]
	if !ok {
		return nil, &models.ValidationError{Reason: models.ReasonUnknownExportFormat, Subject: string(job.Format)}
	}

	doc := NewDocument(job.Title, job.GeneratedAt, job.Content, e.product)
	doc.Attribution = job.Attribution

	data, err := entry.encode(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("encoding %s report: %w", job.Format, err)
	}

	return &models.Report{
		Filename:    job.BaseFilename + reportSuffix + "." + entry.ext,
		ContentType: entry.contentType,
		Size:        len(data),
		Data:        data,
	}, nil
}

// Export encodes job and saves it. The saver is only invoked once encoding,
// including docx packaging, has completed.
func (e *Exporter) Export(ctx context.Context, job models.ExportJob, saver Saver) (*models.Report, error) {
	report, err := e.Render(ctx, job)
	if err != nil {
		return nil, err
	}

	location, err := saver.Save(ctx, report.Filename, report.ContentType, report.Data)
	if err != nil {
		return nil, fmt.Errorf("saving %s: %w", report.Filename, err)
	}
	report.Location = location

	e.log.Info("report exported",
		zap.String("format", string(job.Format)),
		zap.String("filename", report.Filename),
		zap.String("location", location),
		zap.Int("bytes", len(report.Data)),
	)
	return report, nil
}
