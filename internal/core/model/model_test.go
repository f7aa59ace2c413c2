package model

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func ep(ip string) gopacket.Endpoint {
	return layers.NewIPEndpoint(net.ParseIP(ip).To4())
}

func TestTrafficMatrix_MergeOrderIndependent(t *testing.T) {
	a := TrafficMatrix{}
	a.Add(ep("10.0.0.1"), ep("10.0.0.2"), 100)
	a.Add(ep("10.0.0.1"), ep("10.0.0.3"), 60)

	b := TrafficMatrix{}
	b.Add(ep("10.0.0.1"), ep("10.0.0.2"), 40)
	b.Add(ep("10.0.0.9"), ep("10.0.0.1"), 1500)

	c := TrafficMatrix{}
	c.Add(ep("10.0.0.9"), ep("10.0.0.1"), 1500)

	abc := TrafficMatrix{}
	abc.Merge(a)
	abc.Merge(b)
	abc.Merge(c)

	cba := TrafficMatrix{}
	cba.Merge(c)
	cba.Merge(b)
	cba.Merge(a)

	if !abc.Equal(cba) {
		t.Fatalf("Merge order changed the result: %v vs %v", abc.Rows(), cba.Rows())
	}

	got, ok := abc.Lookup(ep("10.0.0.1"), ep("10.0.0.2"))
	if !ok || got.Packets != 2 || got.Bytes != 140 {
		t.Errorf("Expected {2 140} for 10.0.0.1 -> 10.0.0.2, got %+v", got)
	}
	got, _ = abc.Lookup(ep("10.0.0.9"), ep("10.0.0.1"))
	if got.Packets != 2 || got.Bytes != 3000 {
		t.Errorf("Expected {2 3000} for 10.0.0.9 -> 10.0.0.1, got %+v", got)
	}
	if abc.Sources() != 2 || abc.Flows() != 3 {
		t.Errorf("Expected 2 sources and 3 flows, got %d and %d", abc.Sources(), abc.Flows())
	}
}

func TestTrafficMatrix_Equal(t *testing.T) {
	a := TrafficMatrix{}
	a.Add(ep("10.0.0.1"), ep("10.0.0.2"), 10)

	b := TrafficMatrix{}
	b.Add(ep("10.0.0.1"), ep("10.0.0.2"), 11)
	if a.Equal(b) {
		t.Errorf("Matrices with different byte counts compared equal")
	}

	b = TrafficMatrix{}
	b.Add(ep("10.0.0.1"), ep("10.0.0.3"), 10)
	if a.Equal(b) {
		t.Errorf("Matrices with different destinations compared equal")
	}

	if !(TrafficMatrix{}).Equal(TrafficMatrix{}) {
		t.Errorf("Empty matrices should compare equal")
	}
}

func TestTrafficMatrix_Rows(t *testing.T) {
	m := TrafficMatrix{}
	m.Add(ep("10.0.0.2"), ep("10.0.0.1"), 1)
	m.Add(ep("10.0.0.1"), ep("10.0.0.3"), 1)
	m.Add(ep("10.0.0.1"), ep("10.0.0.2"), 1)

	rows := m.Rows()
	want := [][2]string{
		{"10.0.0.1", "10.0.0.2"},
		{"10.0.0.1", "10.0.0.3"},
		{"10.0.0.2", "10.0.0.1"},
	}
	if len(rows) != len(want) {
		t.Fatalf("Expected %d rows, got %d", len(want), len(rows))
	}
	for i, w := range want {
		if rows[i].Src.String() != w[0] || rows[i].Dst.String() != w[1] {
			t.Errorf("Row %d: expected %s -> %s, got %s -> %s", i, w[0], w[1], rows[i].Src, rows[i].Dst)
		}
	}
}

func TestPassVector(t *testing.T) {
	var none PassVector
	if !none.Passed(5) {
		t.Errorf("A nil pass vector should pass every packet")
	}

	p := PassVector{1, 0, 7}
	if !p.Passed(0) || p.Passed(1) || !p.Passed(2) {
		t.Errorf("Unexpected flags for %v", p)
	}
	if p.Count() != 2 {
		t.Errorf("Expected 2 passing packets, got %d", p.Count())
	}
}
