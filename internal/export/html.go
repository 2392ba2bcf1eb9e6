package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
)

const reportStyle = `body{font-family:'Segoe UI',Arial,sans-serif;max-width:800px;margin:0 auto;padding:40px 20px;line-height:1.6;color:#333}` +
	`h1{color:#2a7d7d;border-bottom:3px solid #c9a227;padding-bottom:10px}` +
	`.date{color:#666;font-style:italic}` +
	`.content{background:#f5f5f5;padding:20px;border-radius:8px;white-space:pre-wrap}` +
	`.footer{margin-top:30px;text-align:center;color:#888}`

// Every interpolated value is escaped by html/template; the body's line
// breaks become <br> between escaped lines.
var reportTemplate = template.Must(template.New("report").Parse(
	`<!DOCTYPE html><html lang="fr"><head><meta charset="UTF-8"><title>{{.Title}}</title>` +
		`<style>{{.Style}}</style></head><body>` +
		`<h1>{{.Title}}</h1>` +
		`<p class="date">{{.DateLine}}</p>` +
		`<div class="content">{{range $i, $line := .Lines}}{{if $i}}<br>{{end}}{{$line}}{{end}}</div>` +
		`<p class="footer">{{.Signature}}</p>` +
		`</body></html>`))

type htmlView struct {
	Title     string
	DateLine  string
	Signature string
	Style     template.CSS
	Lines     []string
}

// EncodeHTML writes a standalone HTML page.
func EncodeHTML(_ context.Context, doc Document) ([]byte, error) {
	view := htmlView{
		Title:     doc.Title,
		DateLine:  doc.DateLine(),
		Signature: doc.Signature(),
		Style:     template.CSS(reportStyle),
		Lines:     strings.Split(doc.Body, "\n"),
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("rendering html report: %w", err)
	}
	return buf.Bytes(), nil
}
