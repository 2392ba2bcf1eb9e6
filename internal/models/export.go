package models

import "time"

// ExportFormat is the tag of a report output notation.
type ExportFormat string

const (
	FormatPDF  ExportFormat = "pdf"
	FormatDOCX ExportFormat = "docx"
	FormatTXT  ExportFormat = "txt"
	FormatHTML ExportFormat = "html"
	FormatRTF  ExportFormat = "rtf"
)

// ExportJob describes one synchronous "download" action.
type ExportJob struct {
	Format       ExportFormat
	BaseFilename string
	Title        string
	GeneratedAt  time.Time
	Content      string
	// Attribution appends the signature paragraph in word-processor output.
	// Only single-file reports carry it.
	Attribution bool
}

// Report is an encoded export ready to be saved.
type Report struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
	Location    string `json:"location,omitempty"`
	Data        []byte `json:"-"`
}
