package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

const wordNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// Run sizes are in half-points.
const (
	docxDateSize      = "20"
	docxBodySize      = "22"
	docxSignatureSize = "18"
)

const contentTypesXML = xml.Header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`</Types>`

const packageRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const documentRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

const stylesXML = xml.Header + `<w:styles xmlns:w="` + wordNamespace + `">` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/>` +
	`<w:next w:val="Normal"/><w:qFormat/><w:pPr><w:keepNext/><w:spacing w:before="240" w:after="120"/><w:outlineLvl w:val="0"/></w:pPr>` +
	`<w:rPr><w:b/><w:sz w:val="32"/><w:szCs w:val="32"/></w:rPr></w:style>` +
	`</w:styles>`

type wDocument struct {
	XMLName xml.Name `xml:"w:document"`
	XMLNS   string   `xml:"xmlns:w,attr"`
	Body    wBody    `xml:"w:body"`
}

type wBody struct {
	Paragraphs []wParagraph `xml:"w:p"`
}

type wParagraph struct {
	Props *wParagraphProps `xml:"w:pPr,omitempty"`
	Runs  []wRun           `xml:"w:r"`
}

type wParagraphProps struct {
	Style *wVal `xml:"w:pStyle,omitempty"`
}

type wRun struct {
	Props *wRunProps `xml:"w:rPr,omitempty"`
	Text  wText      `xml:"w:t"`
}

type wRunProps struct {
	Italic *wOnOff `xml:"w:i,omitempty"`
	Size   *wVal   `xml:"w:sz,omitempty"`
	SizeCS *wVal   `xml:"w:szCs,omitempty"`
}

type wText struct {
	Space string `xml:"xml:space,attr,omitempty"`
	Value string `xml:",chardata"`
}

type wVal struct {
	Val string `xml:"w:val,attr"`
}

type wOnOff struct{}

func textRun(text, size string, italic bool) wRun {
	props := &wRunProps{Size: &wVal{Val: size}, SizeCS: &wVal{Val: size}}
	if italic {
		props.Italic = &wOnOff{}
	}
	run := wRun{Props: props, Text: wText{Value: text}}
	if strings.TrimSpace(text) != text {
		run.Text.Space = "preserve"
	}
	return run
}

func emptyParagraph() wParagraph {
	return wParagraph{}
}

func buildDocument(doc Document) wDocument {
	paras := []wParagraph{
		{
			Props: &wParagraphProps{Style: &wVal{Val: "Heading1"}},
			Runs:  []wRun{{Text: wText{Value: doc.Title}}},
		},
		{Runs: []wRun{textRun(doc.DateLine(), docxDateSize, true)}},
		emptyParagraph(),
	}
	for _, line := range strings.Split(doc.Body, "\n") {
		paras = append(paras, wParagraph{Runs: []wRun{textRun(strings.TrimSuffix(line, "\r"), docxBodySize, false)}})
	}
	if doc.Attribution {
		paras = append(paras,
			emptyParagraph(),
			wParagraph{Runs: []wRun{textRun("— "+doc.Signature(), docxSignatureSize, true)}},
		)
	}

	return wDocument{XMLNS: wordNamespace, Body: wBody{Paragraphs: paras}}
}

// EncodeDOCX packages a WordprocessingML document. Packaging checks ctx
// between parts so a caller can abandon a large export.
func EncodeDOCX(ctx context.Context, doc Document) ([]byte, error) {
	body, err := xml.Marshal(buildDocument(doc))
	if err != nil {
		return nil, fmt.Errorf("encoding document.xml: %w", err)
	}

	parts := []struct {
		name    string
		content []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(packageRelsXML)},
		{"word/_rels/document.xml.rels", []byte(documentRelsXML)},
		{"word/styles.xml", []byte(stylesXML)},
		{"word/document.xml", append([]byte(xml.Header), body...)},
	}

	modified, err := time.Parse(dateLayout, doc.Date)
	if err != nil {
		modified = time.Now()
	}

	var output bytes.Buffer
	writer := zip.NewWriter(&output)

	for _, part := range parts {
		if err := ctx.Err(); err != nil {
			_ = writer.Close()
			return nil, err
		}
		if err := writeZipPart(writer, part.name, part.content, modified); err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("packaging %s: %w", part.name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing docx package: %w", err)
	}
	return output.Bytes(), nil
}

func writeZipPart(writer *zip.Writer, name string, content []byte, modified time.Time) error {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	}
	dst, err := writer.CreateHeader(header)
	if err != nil {
		return err
	}
	if _, err := dst.Write(content); err != nil {
		return err
	}
	return nil
}
