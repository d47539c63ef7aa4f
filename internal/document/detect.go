package document

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	sigPDF = []byte("%PDF")
	sigZip = []byte("PK\x03\x04")
	sigCFB = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

var extensions = map[string]FileType{
	".pdf":  PDF,
	".docx": DOCX,
	".doc":  DOC,
	".txt":  Text,
	".text": Text,
	".md":   Text,
}

// sniffLen bounds how much of the content is checked for text when neither
// signature nor extension matched.
const sniffLen = 8192

// DetectType identifies the file type from leading bytes, then from the
// filename extension. Content with no signature and no known extension is
// treated as text when it is valid UTF-8, and rejected otherwise.
func DetectType(data []byte, filename string) (FileType, error) {
	switch {
	case bytes.HasPrefix(data, sigPDF):
		return PDF, nil
	case bytes.HasPrefix(data, sigZip):
		return DOCX, nil
	case bytes.HasPrefix(data, sigCFB):
		return DOC, nil
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if t, ok := extensions[ext]; ok {
		return t, nil
	}

	if looksLikeText(data) {
		return Text, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
}

func looksLikeText(data []byte) bool {
	sample := data
	if len(sample) > sniffLen {
		sample = sample[:sniffLen]
		// A rune cut at the sample boundary is not a decoding failure.
		for i := 0; i < utf8.UTFMax-1 && len(sample) > 0; i++ {
			if r, _ := utf8.DecodeLastRune(sample); r != utf8.RuneError {
				break
			}
			sample = sample[:len(sample)-1]
		}
	}
	return utf8.Valid(sample) && bytes.IndexByte(sample, 0) < 0
}
