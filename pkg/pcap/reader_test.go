package pcap

import (
	"os"
	"path/filepath"
	"testing"

	"CapMatrix/pkg/pcap/synth"
)

func TestReader_MapsCapture(t *testing.T) {
	want := synth.Capture(t,
		synth.Packet{Src: "10.0.0.1", Dst: "10.0.0.2"},
		synth.Packet{Src: "10.0.0.1", Dst: "10.0.0.3"},
	)
	path := filepath.Join(t.TempDir(), "test.pcap")
	if err := os.WriteFile(path, want, 0644); err != nil {
		t.Fatalf("Failed to write capture: %v", err)
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}
	defer reader.Close()

	if reader.Len() != len(want) {
		t.Fatalf("Expected %d mapped bytes, got %d", len(want), reader.Len())
	}
	if string(reader.Bytes()) != string(want) {
		t.Errorf("Mapped bytes differ from file contents")
	}

	index, err := BuildIndex(reader.Bytes())
	if err != nil {
		t.Fatalf("BuildIndex over mapped file failed: %v", err)
	}
	if len(index) != 2 {
		t.Errorf("Expected 2 packets, got %d", len(index))
	}
}

func TestReader_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pcap")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("Failed to write capture: %v", err)
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}
	if reader.Len() != 0 {
		t.Errorf("Expected empty mapping, got %d bytes", reader.Len())
	}
	if err := reader.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestReader_MissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.pcap")); !os.IsNotExist(err) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}
