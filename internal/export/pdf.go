package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

// A4 portrait geometry in millimetres.
const (
	pdfPageWidth  = 210.0
	pdfMargin     = 20.0
	pdfTextWidth  = pdfPageWidth - 2*pdfMargin
	pdfTitleY     = 20.0
	pdfDateY      = 30.0
	pdfRuleY      = 35.0
	pdfBodyTop    = 45.0
	pdfNextTop    = 20.0
	pdfLineStep   = 6.0
	pdfBodyBottom = 280.0
	pdfFooterY    = 290.0

	pdfFont         = "Helvetica"
	pdfTitleSize    = 18.0
	pdfDateSize     = 10.0
	pdfBodySize     = 11.0
	pdfFooterSize   = 8.0
	pdfRuleWidth    = 0.5
	pdfFooterFormat = "%s - Page %d/%d"
)

// linesPerPage is how many body lines fit when the first one sits at top
// and no line is drawn below pdfBodyBottom.
func linesPerPage(top float64) int {
	return int((pdfBodyBottom-top)/pdfLineStep) + 1
}

// wrapLines breaks text into lines no wider than width. Each source line
// starts a new paragraph; words longer than width are cut between runes.
func wrapLines(text string, width float64, measure func(string) float64) []string {
	var out []string

	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}

		line := ""
		for _, word := range words {
			for measure(word) > width {
				if line != "" {
					out = append(out, line)
					line = ""
				}
				head, tail := splitToWidth(word, width, measure)
				out = append(out, head)
				word = tail
			}
			if word == "" {
				continue
			}

			if line == "" {
				line = word
				continue
			}
			candidate := line + " " + word
			if measure(candidate) <= width {
				line = candidate
				continue
			}
			out = append(out, line)
			line = word
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// splitToWidth returns the longest rune prefix of word that fits width,
// always at least one rune.
func splitToWidth(word string, width float64, measure func(string) float64) (string, string) {
	runes := []rune(word)
	n := 1
	for n < len(runes) && measure(string(runes[:n+1])) <= width {
		n++
	}
	return string(runes[:n]), string(runes[n:])
}

// paginate distributes lines over pages. The first page holds fewer lines
// because of the heading block. There is always at least one page.
func paginate(lines []string) [][]string {
	firstCap := linesPerPage(pdfBodyTop)
	nextCap := linesPerPage(pdfNextTop)

	pages := [][]string{}
	capacity := firstCap
	for len(lines) > capacity {
		pages = append(pages, lines[:capacity])
		lines = lines[capacity:]
		capacity = nextCap
	}
	return append(pages, lines)
}

// EncodePDF works in two passes: the body is wrapped and split into pages
// first, so the page total N is fixed before any page is drawn with its
// "<product> - Page i/N" footer.
func EncodePDF(ctx context.Context, doc Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator(doc.Product, true)

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont(pdfFont, "", pdfBodySize)
	lines := wrapLines(doc.Body, pdfTextWidth, func(s string) float64 {
		return pdf.GetStringWidth(tr(s))
	})
	pages := paginate(lines)
	total := len(pages)

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pdf.AddPage()
		y := pdfNextTop
		if i == 0 {
			pdf.SetFont(pdfFont, "B", pdfTitleSize)
			pdf.Text(pdfMargin, pdfTitleY, tr(doc.Title))
			pdf.SetFont(pdfFont, "", pdfDateSize)
			pdf.Text(pdfMargin, pdfDateY, tr(doc.DateLine()))
			pdf.SetLineWidth(pdfRuleWidth)
			pdf.Line(pdfMargin, pdfRuleY, pdfPageWidth-pdfMargin, pdfRuleY)
			y = pdfBodyTop
		}

		pdf.SetFont(pdfFont, "", pdfBodySize)
		for _, line := range page {
			if line != "" {
				pdf.Text(pdfMargin, y, tr(line))
			}
			y += pdfLineStep
		}

		pdf.SetFont(pdfFont, "", pdfFooterSize)
		footer := tr(fmt.Sprintf(pdfFooterFormat, doc.Product, i+1, total))
		pdf.Text((pdfPageWidth-pdf.GetStringWidth(footer))/2, pdfFooterY, footer)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering pdf report: %w", err)
	}
	return buf.Bytes(), nil
}
