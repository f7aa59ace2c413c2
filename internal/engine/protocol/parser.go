package protocol

import (
	"CapMatrix/internal/core/model"
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	RecordHeaderLen   = 16
	EthernetHeaderLen = 14
	NullHeaderLen     = 4

	IPv4SrcOffset = 12
	IPv4DstOffset = 16
	IPv4AddrLen   = 4

	etherTypeOffset = 12
)

// ErrUnsupportedLinkType is returned for link types with no known fixed
// network-layer offset.
var ErrUnsupportedLinkType = errors.New("unsupported link type")

// linkHeaderLen maps each supported link type to the size of its header.
var linkHeaderLen = map[layers.LinkType]int{
	layers.LinkTypeEthernet: EthernetHeaderLen,
	layers.LinkTypeNull:     NullHeaderLen,
}

// Extractor reads IPv4 endpoints at fixed offsets inside capture records.
// It assumes the frame carries IPv4 directly after the link header; VLAN
// tagged or IPv6 frames are misread unless the EtherType check is enabled.
type Extractor struct {
	linkType       layers.LinkType
	srcOffset      int
	dstOffset      int
	minCapLen      uint32
	checkEtherType bool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithEtherTypeCheck makes Ethernet frames whose EtherType is not IPv4 count
// as unreadable instead of being misread.
func WithEtherTypeCheck() Option {
	return func(e *Extractor) {
		e.checkEtherType = true
	}
}

// NewExtractor derives the address offsets for the capture's declared link type.
func NewExtractor(linkType layers.LinkType, opts ...Option) (*Extractor, error) {
	linkLen, ok := linkHeaderLen[linkType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLinkType, linkType)
	}
	e := &Extractor{
		linkType:  linkType,
		srcOffset: RecordHeaderLen + linkLen + IPv4SrcOffset,
		dstOffset: RecordHeaderLen + linkLen + IPv4DstOffset,
		minCapLen: uint32(linkLen + IPv4DstOffset + IPv4AddrLen),
	}
	for _, opt := range opts {
		opt(e)
	}
	if linkType != layers.LinkTypeEthernet {
		e.checkEtherType = false
	}
	return e, nil
}

// LinkType returns the link type the offsets were derived for.
func (e *Extractor) LinkType() layers.LinkType {
	return e.linkType
}

// Endpoints returns the source and destination addresses of the record at
// offset. ok is false when the captured frame is too short to hold them.
func (e *Extractor) Endpoints(buf []byte, offset int, capLen uint32) (src, dst gopacket.Endpoint, ok bool) {
	if capLen < e.minCapLen {
		return src, dst, false
	}
	if e.checkEtherType {
		at := offset + RecordHeaderLen + etherTypeOffset
		if layers.EthernetType(binary.BigEndian.Uint16(buf[at:at+2])) != layers.EthernetTypeIPv4 {
			return src, dst, false
		}
	}
	src = layers.NewIPEndpoint(net.IP(buf[offset+e.srcOffset : offset+e.srcOffset+IPv4AddrLen]))
	dst = layers.NewIPEndpoint(net.IP(buf[offset+e.dstOffset : offset+e.dstOffset+IPv4AddrLen]))
	return src, dst, true
}

// Decode uses gopacket to fully decode a frame and extract its 5-tuple.
// It is much slower than Endpoints and meant for tooling.
func Decode(data []byte, linkType layers.LinkType) (*model.PacketInfo, error) {
	packet := gopacket.NewPacket(data, linkType, gopacket.Default)

	info := &model.PacketInfo{Length: len(data)}

	ipLayer, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok {
		return nil, fmt.Errorf("not an IPv4 packet")
	}
	info.FiveTuple.SrcIP = ipLayer.SrcIP
	info.FiveTuple.DstIP = ipLayer.DstIP
	info.FiveTuple.Protocol = uint8(ipLayer.Protocol)

	if tcp, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		info.FiveTuple.SrcPort = uint16(tcp.SrcPort)
		info.FiveTuple.DstPort = uint16(tcp.DstPort)
	} else if udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		info.FiveTuple.SrcPort = uint16(udp.SrcPort)
		info.FiveTuple.DstPort = uint16(udp.DstPort)
	}

	return info, nil
}
