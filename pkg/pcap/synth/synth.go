// Package synth builds capture files for tests and the pcapgen tool.
package synth

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Packet describes one IPv4/UDP frame to synthesize.
type Packet struct {
	Src     string
	Dst     string
	SrcPort uint16
	DstPort uint16
	Payload int // payload size in bytes
}

var (
	srcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC = net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA}
)

// Frame serializes p with the link header of linkType. Only Ethernet and
// Null (BSD loopback) are supported.
func Frame(linkType layers.LinkType, p Packet) ([]byte, error) {
	srcIP := net.ParseIP(p.Src).To4()
	dstIP := net.ParseIP(p.Dst).To4()
	if srcIP == nil || dstIP == nil {
		return nil, fmt.Errorf("invalid IPv4 address pair %q -> %q", p.Src, p.Dst)
	}

	ipLayer := &layers.IPv4{
		SrcIP:    srcIP,
		DstIP:    dstIP,
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
	}
	udpLayer := &layers.UDP{
		SrcPort: layers.UDPPort(p.SrcPort),
		DstPort: layers.UDPPort(p.DstPort),
	}
	if err := udpLayer.SetNetworkLayerForChecksum(ipLayer); err != nil {
		return nil, err
	}
	payload := gopacket.Payload(make([]byte, p.Payload))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}

	switch linkType {
	case layers.LinkTypeEthernet:
		ethLayer := &layers.Ethernet{
			SrcMAC:       srcMAC,
			DstMAC:       dstMAC,
			EthernetType: layers.EthernetTypeIPv4,
		}
		if err := gopacket.SerializeLayers(buf, opts, ethLayer, ipLayer, udpLayer, payload); err != nil {
			return nil, fmt.Errorf("failed to serialize layers: %w", err)
		}
		return buf.Bytes(), nil
	case layers.LinkTypeNull:
		if err := gopacket.SerializeLayers(buf, opts, ipLayer, udpLayer, payload); err != nil {
			return nil, fmt.Errorf("failed to serialize layers: %w", err)
		}
		frame := make([]byte, 4, 4+len(buf.Bytes()))
		binary.NativeEndian.PutUint32(frame, uint32(layers.ProtocolFamilyIPv4))
		return append(frame, buf.Bytes()...), nil
	default:
		return nil, fmt.Errorf("unsupported link type %s", linkType)
	}
}

// Writer appends synthesized packets to a capture stream.
type Writer struct {
	w        *pcapgo.Writer
	linkType layers.LinkType
}

// NewWriter writes a v2.4 global header for linkType to out.
func NewWriter(out io.Writer, snaplen uint32, linkType layers.LinkType) (*Writer, error) {
	w := pcapgo.NewWriter(out)
	if err := w.WriteFileHeader(snaplen, linkType); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &Writer{w: w, linkType: linkType}, nil
}

// Write appends one packet captured at ts.
func (w *Writer) Write(p Packet, ts time.Time) error {
	data, err := Frame(w.linkType, p)
	if err != nil {
		return err
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}
	return w.w.WritePacket(ci, data)
}

// Capture returns an in-memory Ethernet capture holding packets.
func Capture(tb testing.TB, packets ...Packet) []byte {
	tb.Helper()
	return CaptureLink(tb, layers.LinkTypeEthernet, packets...)
}

// CaptureLink is Capture with an explicit link type.
func CaptureLink(tb testing.TB, linkType layers.LinkType, packets ...Packet) []byte {
	tb.Helper()
	var out bytes.Buffer
	w, err := NewWriter(&out, 65536, linkType)
	if err != nil {
		tb.Fatalf("Failed to create capture writer: %v", err)
	}
	base := time.Unix(1700000000, 0)
	for i, p := range packets {
		if err := w.Write(p, base.Add(time.Duration(i)*time.Millisecond)); err != nil {
			tb.Fatalf("Failed to write packet %d: %v", i, err)
		}
	}
	return out.Bytes()
}

// Header builds a raw global header, for captures gopacket refuses to write.
func Header(magic uint32, major, minor uint16, snaplen, linkField uint32) []byte {
	b := make([]byte, 24)
	binary.NativeEndian.PutUint32(b[0:4], magic)
	binary.NativeEndian.PutUint16(b[4:6], major)
	binary.NativeEndian.PutUint16(b[6:8], minor)
	binary.NativeEndian.PutUint32(b[16:20], snaplen)
	binary.NativeEndian.PutUint32(b[20:24], linkField)
	return b
}

// Record builds a raw record whose header declares capLen independently of
// the data actually appended.
func Record(tsSec, capLen, origLen uint32, data []byte) []byte {
	b := make([]byte, 16, 16+len(data))
	binary.NativeEndian.PutUint32(b[0:4], tsSec)
	binary.NativeEndian.PutUint32(b[8:12], capLen)
	binary.NativeEndian.PutUint32(b[12:16], origLen)
	return append(b, data...)
}
