package export

import (
	"bytes"
	"context"
	"strings"
)

var textRule = strings.Repeat("=", 50)

// EncodeText writes the plain text report. The body is copied untouched.
func EncodeText(_ context.Context, doc Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(doc.Body) + 256)

	buf.WriteString(doc.Title)
	buf.WriteByte('\n')
	buf.WriteString(doc.DateLine())
	buf.WriteByte('\n')
	buf.WriteString(textRule)
	buf.WriteString("\n\n")
	buf.WriteString(doc.Body)
	buf.WriteString("\n\n")
	buf.WriteString(textRule)
	buf.WriteByte('\n')
	buf.WriteString(doc.Signature())

	return buf.Bytes(), nil
}
