package pcap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Reader maps a capture file read-only into memory.
type Reader struct {
	file *os.File
	data []byte
}

// NewReader opens and maps the capture file at filePath. The mapping stays
// valid and unmodified until Close.
func NewReader(filePath string) (*Reader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat capture file: %w", err)
	}

	r := &Reader{file: f}
	if info.Size() == 0 {
		// mmap rejects zero-length mappings.
		r.data = []byte{}
		return r, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mmap capture file: %w", err)
	}
	r.data = data
	return r, nil
}

// Bytes returns the mapped capture. Callers must not write to it.
func (r *Reader) Bytes() []byte {
	return r.data
}

// Len returns the capture size in bytes.
func (r *Reader) Len() int {
	return len(r.data)
}

// Close unmaps the capture and closes the file.
func (r *Reader) Close() error {
	var err error
	if len(r.data) > 0 {
		err = unix.Munmap(r.data)
	}
	r.data = nil
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}
