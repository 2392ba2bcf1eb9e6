// Package export encodes analysis text into downloadable reports.
package export

import (
	"context"
	"time"
)

const (
	// DefaultProduct signs every report.
	DefaultProduct = "L'Éclaireur"

	dateLayout = "2006-01-02"
	dateLabel  = "Généré le: "
	signLabel  = "Généré par "
)

// Document is the title/date/body triple every encoder lays out.
type Document struct {
	Title   string
	Date    string
	Body    string
	Product string
	// Attribution adds the closing signature paragraph to word-processor
	// output.
	Attribution bool
}

// NewDocument formats the generation date and fills the product name.
func NewDocument(title string, at time.Time, body, product string) Document {
	if product == "" {
		product = DefaultProduct
	}
	return Document{
		Title:   title,
		Date:    at.Format(dateLayout),
		Body:    body,
		Product: product,
	}
}

// DateLine is the "Généré le: YYYY-MM-DD" line.
func (d Document) DateLine() string {
	return dateLabel + d.Date
}

// Signature is the "Généré par <product>" line.
func (d Document) Signature() string {
	return signLabel + d.Product
}

// Encoder turns a document into one format's payload.
type Encoder func(ctx context.Context, doc Document) ([]byte, error)
