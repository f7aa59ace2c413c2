package protocol

import (
	"errors"
	"testing"

	"CapMatrix/pkg/pcap"
	"CapMatrix/pkg/pcap/synth"

	"github.com/google/gopacket/layers"
)

func TestExtractor_MatchesDecode(t *testing.T) {
	for _, linkType := range []layers.LinkType{layers.LinkTypeEthernet, layers.LinkTypeNull} {
		t.Run(linkType.String(), func(t *testing.T) {
			buf := synth.CaptureLink(t, linkType,
				synth.Packet{Src: "10.0.0.1", Dst: "10.0.0.2", SrcPort: 5353, DstPort: 53, Payload: 12},
				synth.Packet{Src: "192.168.68.110", Dst: "1.1.1.1", SrcPort: 40000, DstPort: 443},
			)
			index, err := pcap.BuildIndex(buf)
			if err != nil {
				t.Fatalf("BuildIndex failed: %v", err)
			}

			ex, err := NewExtractor(linkType)
			if err != nil {
				t.Fatalf("NewExtractor failed: %v", err)
			}

			for i, d := range index {
				src, dst, ok := ex.Endpoints(buf, d.Offset, d.CapLen)
				if !ok {
					t.Fatalf("Packet %d: endpoints not extracted", i)
				}

				info, err := Decode(buf[d.DataOffset():d.End()], linkType)
				if err != nil {
					t.Fatalf("Packet %d: decode failed: %v", i, err)
				}
				if src.String() != info.FiveTuple.SrcIP.String() {
					t.Errorf("Packet %d: src %s, decoded %s", i, src, info.FiveTuple.SrcIP)
				}
				if dst.String() != info.FiveTuple.DstIP.String() {
					t.Errorf("Packet %d: dst %s, decoded %s", i, dst, info.FiveTuple.DstIP)
				}
				if info.FiveTuple.Protocol != uint8(layers.IPProtocolUDP) {
					t.Errorf("Packet %d: expected UDP, got protocol %d", i, info.FiveTuple.Protocol)
				}
			}
		})
	}
}

func TestNewExtractor_UnsupportedLinkType(t *testing.T) {
	for _, linkType := range []layers.LinkType{layers.LinkTypeRaw, layers.LinkTypeLinuxSLL, layers.LinkTypeIEEE802_11} {
		if _, err := NewExtractor(linkType); !errors.Is(err, ErrUnsupportedLinkType) {
			t.Errorf("%s: expected ErrUnsupportedLinkType, got %v", linkType, err)
		}
	}
}

func TestExtractor_ShortRecord(t *testing.T) {
	frame, err := synth.Frame(layers.LinkTypeEthernet, synth.Packet{Src: "10.0.0.1", Dst: "10.0.0.2"})
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	// Snap the frame just before the last destination byte.
	snapped := frame[:EthernetHeaderLen+IPv4DstOffset+IPv4AddrLen-1]
	buf := append(synth.Header(pcap.Magic, 2, 4, 33, 1), synth.Record(0, uint32(len(snapped)), uint32(len(frame)), snapped)...)

	ex, _ := NewExtractor(layers.LinkTypeEthernet)
	if _, _, ok := ex.Endpoints(buf, pcap.GlobalHeaderLen, uint32(len(snapped))); ok {
		t.Errorf("Expected short record to be rejected")
	}
}

func TestExtractor_EtherTypeCheck(t *testing.T) {
	frame, err := synth.Frame(layers.LinkTypeEthernet, synth.Packet{Src: "10.0.0.1", Dst: "10.0.0.2"})
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	frame[12], frame[13] = 0x86, 0xDD // IPv6
	buf := append(synth.Header(pcap.Magic, 2, 4, 65535, 1), synth.Record(0, uint32(len(frame)), uint32(len(frame)), frame)...)

	loose, _ := NewExtractor(layers.LinkTypeEthernet)
	if _, _, ok := loose.Endpoints(buf, pcap.GlobalHeaderLen, uint32(len(frame))); !ok {
		t.Errorf("Without the EtherType check the frame should be read at fixed offsets")
	}

	strict, _ := NewExtractor(layers.LinkTypeEthernet, WithEtherTypeCheck())
	if _, _, ok := strict.Endpoints(buf, pcap.GlobalHeaderLen, uint32(len(frame))); ok {
		t.Errorf("With the EtherType check a non-IPv4 frame should be rejected")
	}
}
