package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	pdfread "github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// charWidth measures every rune as one unit.
func charWidth(s string) float64 {
	return float64(len([]rune(s)))
}

func TestLinesPerPage(t *testing.T) {
	assert.Equal(t, 40, linesPerPage(pdfBodyTop))
	assert.Equal(t, 44, linesPerPage(pdfNextTop))
}

func TestWrapLines(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width float64
		want  []string
	}{
		{"fits", "un deux trois", 20, []string{"un deux trois"}},
		{"wraps on words", "un deux trois", 8, []string{"un deux", "trois"}},
		{"keeps blank lines", "a\n\nb", 10, []string{"a", "", "b"}},
		{"normalizes crlf", "a\r\nb", 10, []string{"a", "b"}},
		{"cuts long words", "abcdefghij xy", 4, []string{"abcd", "efgh", "ij", "xy"}},
		{"empty body", "", 10, []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wrapLines(tt.text, tt.width, charWidth))
		})
	}
}

func TestWrapLines_NeverExceedsWidth(t *testing.T) {
	text := strings.Repeat("analyse juridique approfondie ", 40) + strings.Repeat("x", 95)
	for _, line := range wrapLines(text, 30, charWidth) {
		assert.LessOrEqual(t, charWidth(line), 30.0, line)
	}
}

func TestPaginate(t *testing.T) {
	lines := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("l%d", i)
		}
		return out
	}

	tests := []struct {
		lines int
		sizes []int
	}{
		{0, []int{0}},
		{1, []int{1}},
		{40, []int{40}},
		{41, []int{40, 1}},
		{84, []int{40, 44}},
		{85, []int{40, 44, 1}},
		{200, []int{40, 44, 44, 44, 28}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d lines", tt.lines), func(t *testing.T) {
			pages := paginate(lines(tt.lines))
			sizes := make([]int, len(pages))
			for i, p := range pages {
				sizes[i] = len(p)
			}
			assert.Equal(t, tt.sizes, sizes)
		})
	}

	// Order is preserved across page boundaries.
	var joined []string
	for _, p := range paginate(lines(130)) {
		joined = append(joined, p...)
	}
	assert.Equal(t, lines(130), joined)
}

func readPDF(t *testing.T, data []byte) *pdfread.Reader {
	t.Helper()
	r, err := pdfread.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return r
}

func TestEncodePDF(t *testing.T) {
	t.Run("short report fits one page", func(t *testing.T) {
		data, err := EncodePDF(context.Background(), testDocument(asciiBody))
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
		assert.Equal(t, 1, readPDF(t, data).NumPage())
	})

	t.Run("page count follows layout", func(t *testing.T) {
		var body []string
		for i := 0; i < 100; i++ {
			body = append(body, fmt.Sprintf("Ligne %d de l'analyse", i))
		}
		data, err := EncodePDF(context.Background(), testDocument(strings.Join(body, "\n")))
		require.NoError(t, err)

		// 40 + 44 + 16
		assert.Equal(t, 3, readPDF(t, data).NumPage())
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := EncodePDF(ctx, testDocument(asciiBody))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
