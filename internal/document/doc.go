package document

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
)

const (
	wordStream = "WordDocument"
	// minRun is the shortest character run kept when scanning the WordDocument stream.
	minRun = 4
)

// docText recovers text from a legacy Word compound file. The WordDocument
// stream is scanned for runs of UTF-16LE and 8-bit printable characters;
// paragraph marks (\r) become line breaks. Formatting tables are not parsed,
// so short binary fragments are dropped by the minimum run length.
func docText(data []byte) (string, error) {
	cfb, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: open compound file: %w", ErrCorruptDocument, err)
	}

	for entry, err := cfb.Next(); err == nil; entry, err = cfb.Next() {
		if entry.Name != wordStream {
			continue
		}

		stream, err := io.ReadAll(entry)
		if err != nil {
			return "", fmt.Errorf("%w: read %s: %w", ErrCorruptDocument, wordStream, err)
		}

		wide, narrow := utf16Runs(stream), ansiRuns(stream)
		if asciiScore(wide) >= asciiScore(narrow) {
			return wide, nil
		}
		return narrow, nil
	}

	return "", fmt.Errorf("%w: %s stream not found", ErrCorruptDocument, wordStream)
}

// asciiScore counts ASCII letters, digits, and spaces. Text decoded with the
// wrong width turns into non-ASCII noise and scores low.
func asciiScore(s string) int {
	n := 0
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ') {
			n++
		}
	}
	return n
}

func utf16Runs(b []byte) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])|uint16(b[i+1])<<8)
	}
	return collectRuns(utf16.Decode(units))
}

func ansiRuns(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return collectRuns(runes)
}

func collectRuns(runes []rune) string {
	var (
		sb  strings.Builder
		run []rune
	)

	flush := func(lineBreak bool) {
		if len(run) >= minRun {
			sb.WriteString(string(run))
			if lineBreak {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte(' ')
			}
		}
		run = run[:0]
	}

	for _, r := range runes {
		switch {
		case r == '\r' || r == '\n':
			flush(true)
		case r == '\t' || (unicode.IsPrint(r) && r != unicode.ReplacementChar):
			run = append(run, r)
		default:
			flush(false)
		}
	}
	flush(true)

	return strings.TrimSpace(sb.String())
}
