package pcap

import (
	"encoding/binary"
	"time"
)

// PacketDescriptor locates one record inside the capture buffer.
type PacketDescriptor struct {
	Offset   int // absolute offset of the record header
	TsSec    uint32
	TsSubsec uint32
	CapLen   uint32
	OrigLen  uint32
}

// DataOffset returns the absolute offset of the captured frame bytes.
func (d PacketDescriptor) DataOffset() int {
	return d.Offset + RecordHeaderLen
}

// End returns the offset of the record that follows this one.
func (d PacketDescriptor) End() int {
	return d.Offset + RecordHeaderLen + int(d.CapLen)
}

// Timestamp converts the record timestamp, assuming microsecond resolution.
func (d PacketDescriptor) Timestamp() time.Time {
	return time.Unix(int64(d.TsSec), int64(d.TsSubsec)*int64(time.Microsecond)).UTC()
}

// CaptureIndex lists the records of a capture in file order. The position of
// a descriptor is its packet id.
type CaptureIndex []PacketDescriptor

// Offsets returns the record offsets, the only per-packet input the filter
// kernel needs.
func (idx CaptureIndex) Offsets() []uint64 {
	offsets := make([]uint64, len(idx))
	for i, d := range idx {
		offsets[i] = uint64(d.Offset)
	}
	return offsets
}

// BuildIndex scans the records that follow the global header. Each record's
// position depends on the previous record's length, so the scan is sequential.
// A record that would cross the end of buf fails the whole index.
func BuildIndex(buf []byte) (CaptureIndex, error) {
	var index CaptureIndex
	offset := GlobalHeaderLen
	if len(buf) < offset {
		return nil, &TruncationError{Offset: 0, Need: GlobalHeaderLen, Have: len(buf)}
	}

	for offset < len(buf) {
		remaining := len(buf) - offset
		if remaining < RecordHeaderLen {
			return nil, &TruncationError{Offset: offset, Need: RecordHeaderLen, Have: remaining}
		}

		hdr := buf[offset : offset+RecordHeaderLen]
		d := PacketDescriptor{
			Offset:   offset,
			TsSec:    binary.NativeEndian.Uint32(hdr[0:4]),
			TsSubsec: binary.NativeEndian.Uint32(hdr[4:8]),
			CapLen:   binary.NativeEndian.Uint32(hdr[8:12]),
			OrigLen:  binary.NativeEndian.Uint32(hdr[12:16]),
		}

		need := RecordHeaderLen + int(d.CapLen)
		if need > remaining {
			return nil, &TruncationError{Offset: offset, Need: need, Have: remaining}
		}

		index = append(index, d)
		offset += need
	}

	return index, nil
}
