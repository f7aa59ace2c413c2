package pcap

import (
	"errors"
	"fmt"
)

// ErrFormat is the parent of every global header validation failure.
var ErrFormat = errors.New("pcap: invalid capture format")

var (
	ErrShortHeader    = fmt.Errorf("%w: buffer shorter than global header", ErrFormat)
	ErrBadMagic       = fmt.Errorf("%w: bad magic", ErrFormat)
	ErrUnsupportedFCS = fmt.Errorf("%w: frame check sequence trailers are not supported", ErrFormat)
)

// ErrTruncated is returned (wrapped in a *TruncationError) when a record
// would extend past the end of the buffer.
var ErrTruncated = errors.New("pcap: truncated capture")

// TruncationError reports the record that does not fit in the buffer.
type TruncationError struct {
	Offset int // absolute offset of the offending record header
	Need   int // bytes the record requires from Offset
	Have   int // bytes left in the buffer from Offset
}

func (e *TruncationError) Error() string {
	return fmt.Sprintf("pcap: truncated capture: record at offset %d needs %d bytes, %d available", e.Offset, e.Need, e.Have)
}

func (e *TruncationError) Unwrap() error {
	return ErrTruncated
}
