package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"
)

// rtfAccents is the fixed table for French orthography.
var rtfAccents = map[rune]string{
	'à': `\'e0`, 'â': `\'e2`, 'ç': `\'e7`, 'è': `\'e8`, 'é': `\'e9`, 'ê': `\'ea`,
	'ë': `\'eb`, 'î': `\'ee`, 'ï': `\'ef`, 'ô': `\'f4`, 'ù': `\'f9`, 'û': `\'fb`,
	'À': `\'c0`, 'Â': `\'c2`, 'Ç': `\'c7`, 'È': `\'c8`, 'É': `\'c9`, 'Ê': `\'ca`,
	'Ë': `\'cb`, 'Î': `\'ce`, 'Ï': `\'cf`, 'Ô': `\'d4`, 'Ù': `\'d9`, 'Û': `\'db`,
}

// escapeRTF converts text to the document's cp1252 notation. Newlines become
// paragraph breaks. Runes outside the table fall back to the code page, then
// to \uN with a '?' substitute, one per UTF-16 code unit.
func escapeRTF(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/8)

	for _, r := range text {
		if esc, ok := rtfAccents[r]; ok {
			b.WriteString(esc)
			continue
		}
		switch {
		case r == '\\' || r == '{' || r == '}':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\par `)
		case r == '\r':
		case r < 0x80:
			b.WriteRune(r)
		default:
			if c, ok := charmap.Windows1252.EncodeRune(r); ok {
				fmt.Fprintf(&b, `\'%02x`, c)
				continue
			}
			if r > 0xFFFF {
				hi, lo := utf16.EncodeRune(r)
				fmt.Fprintf(&b, `\u%d?\u%d?`, int16(uint16(hi)), int16(uint16(lo)))
				continue
			}
			// \u takes a signed 16-bit value.
			fmt.Fprintf(&b, `\u%d?`, int16(uint16(r)))
		}
	}
	return b.String()
}

// EncodeRTF writes a cp1252 rich text document.
func EncodeRTF(_ context.Context, doc Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(doc.Body) + 256)

	buf.WriteString(`{\rtf1\ansi\ansicpg1252\deff0{\fonttbl{\f0 Arial;}}`)
	fmt.Fprintf(&buf, `{\b\fs36 %s}\par`, escapeRTF(doc.Title))
	fmt.Fprintf(&buf, `{\i\fs20 %s}\par\par`, escapeRTF(doc.DateLine()))
	fmt.Fprintf(&buf, `{\fs22 %s}\par\par`, escapeRTF(doc.Body))
	fmt.Fprintf(&buf, `{\i\fs18 %s}`, escapeRTF("— "+doc.Signature()))
	buf.WriteByte('}')

	return buf.Bytes(), nil
}
