package segment

import "errors"

var (
	// ErrInvalidConfig indicates segment size or overlap are out of range.
	ErrInvalidConfig = errors.New("invalid segmenter configuration")
)
