// Package pdftest builds small uncompressed PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	top     = 720
	leading = 14
)

var escaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

// Build returns a PDF with one page per element of pages. Each string of a
// page is drawn as its own text row, top to bottom, in Helvetica with
// WinAnsi encoding. A nil or empty page is blank.
func Build(pages [][]string) []byte {
	const fixed = 3 // catalog, page tree, font
	count := fixed + 2*len(pages)
	offsets := make([]int, count+1)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	object := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", pageObject(i))
	}

	object(1, "<< /Type /Catalog /Pages 2 0 R >>")
	object(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	object(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, lines := range pages {
		object(pageObject(i), fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			pageObject(i)+1,
		))

		content := pageContent(lines)
		object(pageObject(i)+1, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", count+1)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= count; num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", count+1, xref)

	return buf.Bytes()
}

// Pages returns n pages, each holding the lines fill returns for its
// zero-based index.
func Pages(n int, fill func(page int) []string) [][]string {
	pages := make([][]string, n)
	for i := range pages {
		pages[i] = fill(i)
	}
	return pages
}

func pageObject(page int) int {
	return 4 + 2*page
}

func pageContent(lines []string) string {
	var sb strings.Builder
	sb.WriteString("BT\n/F1 12 Tf\n")
	for i, line := range lines {
		fmt.Fprintf(&sb, "1 0 0 1 72 %d Tm\n(%s) Tj\n", top-i*leading, escaper.Replace(line))
	}
	sb.WriteString("ET")
	return sb.String()
}
