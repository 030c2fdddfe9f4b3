package extract

import "errors"

var (
	// ErrUnsupported is returned for files whose extension has no reader.
	ErrUnsupported = errors.New("unsupported file type")

	// ErrCorruptFile is returned when a file cannot be decoded.
	ErrCorruptFile = errors.New("corrupt file")
)
