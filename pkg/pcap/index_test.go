package pcap

import (
	"errors"
	"testing"

	"CapMatrix/pkg/pcap/synth"
)

func TestBuildIndex_TilesBuffer(t *testing.T) {
	buf := synth.Capture(t,
		synth.Packet{Src: "10.0.0.1", Dst: "10.0.0.2", Payload: 10},
		synth.Packet{Src: "10.0.0.1", Dst: "10.0.0.2", Payload: 200},
		synth.Packet{Src: "10.0.0.1", Dst: "10.0.0.3"},
		synth.Packet{Src: "192.168.1.7", Dst: "8.8.8.8", Payload: 1400},
	)

	index, err := BuildIndex(buf)
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	if len(index) != 4 {
		t.Fatalf("Expected 4 packets, got %d", len(index))
	}

	cursor := GlobalHeaderLen
	for i, d := range index {
		if d.Offset != cursor {
			t.Errorf("Packet %d: expected offset %d, got %d", i, cursor, d.Offset)
		}
		if d.CapLen != d.OrigLen {
			t.Errorf("Packet %d: expected cap_len == orig_len, got %d != %d", i, d.CapLen, d.OrigLen)
		}
		cursor = d.End()
	}
	if cursor != len(buf) {
		t.Errorf("Records end at %d, buffer length is %d", cursor, len(buf))
	}

	if got := index[1].Timestamp().Sub(index[0].Timestamp()); got.Milliseconds() != 1 {
		t.Errorf("Expected 1ms between packets, got %v", got)
	}

	offsets := index.Offsets()
	for i, off := range offsets {
		if int(off) != index[i].Offset {
			t.Errorf("Offsets()[%d] = %d, want %d", i, off, index[i].Offset)
		}
	}
}

func TestBuildIndex_Empty(t *testing.T) {
	buf := synth.Capture(t)
	index, err := BuildIndex(buf)
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	if len(index) != 0 {
		t.Errorf("Expected empty index, got %d packets", len(index))
	}
}

func TestBuildIndex_Truncated(t *testing.T) {
	valid := synth.Capture(t,
		synth.Packet{Src: "10.0.0.1", Dst: "10.0.0.2"},
		synth.Packet{Src: "10.0.0.1", Dst: "10.0.0.3"},
	)

	tests := []struct {
		name   string
		buf    []byte
		offset int
	}{
		{
			name:   "body overruns buffer",
			buf:    append(append([]byte{}, valid...), synth.Record(0, 100, 100, make([]byte, 40))...),
			offset: len(valid),
		},
		{
			name:   "partial record header",
			buf:    append(append([]byte{}, valid...), make([]byte, 10)...),
			offset: len(valid),
		},
		{
			name:   "last byte missing",
			buf:    valid[:len(valid)-1],
			offset: GlobalHeaderLen + (len(valid)-GlobalHeaderLen)/2,
		},
		{
			name:   "no global header",
			buf:    valid[:12],
			offset: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index, err := BuildIndex(tt.buf)
			if !errors.Is(err, ErrTruncated) {
				t.Fatalf("Expected ErrTruncated, got %v", err)
			}
			if index != nil {
				t.Errorf("Expected no index on truncation, got %d packets", len(index))
			}
			var te *TruncationError
			if !errors.As(err, &te) {
				t.Fatalf("Expected *TruncationError, got %T", err)
			}
			if te.Offset != tt.offset {
				t.Errorf("Expected truncation at offset %d, got %d", tt.offset, te.Offset)
			}
			if te.Need <= te.Have {
				t.Errorf("Expected need > have, got need=%d have=%d", te.Need, te.Have)
			}
		})
	}
}
