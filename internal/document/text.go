package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// FullText extracts the complete text of a character-partitioned document.
// Line breaks are normalized to "\n".
func FullText(data []byte, fileType FileType) (string, error) {
	var (
		text string
		err  error
	)

	switch fileType {
	case DOCX:
		text, err = docxText(data)
	case DOC:
		text, err = docText(data)
	case Text:
		text = strings.ToValidUTF8(string(data), "�")
	default:
		return "", fmt.Errorf("%w: no full-text extraction for %s", ErrUnsupportedFormat, fileType)
	}
	if err != nil {
		return "", err
	}

	return normalizeNewlines(text), nil
}

// PageText extracts the text of pdf pages in the zero-based interval
// [start, end). Each visual row becomes one line; pages are separated by a
// newline.
func PageText(data []byte, start, end int) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %w", ErrCorruptDocument, err)
	}

	end = min(end, r.NumPage())

	var sb strings.Builder
	for i := start; i < end; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %w", ErrCorruptDocument, i+1, err)
		}

		for _, row := range rows {
			for _, word := range row.Content {
				sb.WriteString(word.S)
			}
			sb.WriteByte('\n')
		}
	}

	return sb.String(), nil
}

// docxText reads word/document.xml from the zip container and emits one line per paragraph.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open docx: %w", ErrCorruptDocument, err)
	}

	f, err := zr.Open("word/document.xml")
	if err != nil {
		return "", fmt.Errorf("%w: word/document.xml: %w", ErrCorruptDocument, err)
	}
	defer f.Close()

	decoder := xml.NewDecoder(f)
	var (
		sb     strings.Builder
		inText bool
	)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: parse document.xml: %w", ErrCorruptDocument, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return sb.String(), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
