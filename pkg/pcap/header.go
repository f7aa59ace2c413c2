package pcap

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket/layers"
)

const (
	// Magic is the classic microsecond-resolution capture magic.
	Magic uint32 = 0xA1B2C3D4

	GlobalHeaderLen = 24
	RecordHeaderLen = 16
)

// fcsFlagBit is the "F" bit of the 32-bit link-type field.
const fcsFlagBit = 1 << 28

// GlobalHeader is the decoded 24-byte file prefix.
type GlobalHeader struct {
	Magic         uint32
	VersionMajor  uint16
	VersionMinor  uint16
	SnapLen       uint32
	LinkTypeField uint32 // raw field at offset 20, flags included
	FCSPresent    uint8  // bits 4-7 of byte 20
}

// LinkType returns the link-layer type declared in the header.
func (h GlobalHeader) LinkType() layers.LinkType {
	return layers.LinkType(h.LinkTypeField & 0xFFFF)
}

func (h GlobalHeader) String() string {
	return fmt.Sprintf("pcap v%d.%d snaplen=%d linktype=%s", h.VersionMajor, h.VersionMinor, h.SnapLen, h.LinkType())
}

// ValidateHeader decodes and checks the global header at the start of buf.
// All multi-byte fields are read in native byte order.
func ValidateHeader(buf []byte) (GlobalHeader, error) {
	if len(buf) < GlobalHeaderLen {
		return GlobalHeader{}, ErrShortHeader
	}

	h := GlobalHeader{
		Magic:         binary.NativeEndian.Uint32(buf[0:4]),
		VersionMajor:  binary.NativeEndian.Uint16(buf[4:6]),
		VersionMinor:  binary.NativeEndian.Uint16(buf[6:8]),
		// 8..16 reserved
		SnapLen:       binary.NativeEndian.Uint32(buf[16:20]),
		LinkTypeField: binary.NativeEndian.Uint32(buf[20:24]),
		FCSPresent:    buf[20] >> 4,
	}

	if h.Magic != Magic {
		return h, fmt.Errorf("%w: got 0x%08X, want 0x%08X", ErrBadMagic, h.Magic, Magic)
	}
	if h.FCSPresent != 0 || h.LinkTypeField&fcsFlagBit != 0 {
		return h, fmt.Errorf("%w: fcs=%d", ErrUnsupportedFCS, h.FCSPresent)
	}
	return h, nil
}
