package document

import "errors"

var (
	// ErrUnreadableSource indicates the document bytes could not be fetched.
	ErrUnreadableSource = errors.New("unreadable source")
	// ErrUnsupportedFormat indicates neither the byte signature nor the filename identified a known format.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrCorruptDocument indicates the document could only be partially parsed.
	ErrCorruptDocument = errors.New("corrupt document")
	// ErrTooLarge indicates the document exceeds the configured maximum size.
	ErrTooLarge = errors.New("document exceeds maximum size")
)
