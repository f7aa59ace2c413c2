package model

import (
	"net"
	"sort"

	"github.com/google/gopacket"
)

// FiveTuple represents the 5-tuple of a decoded packet.
type FiveTuple struct {
	SrcIP    net.IP
	DstIP    net.IP
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8 // e.g., TCP, UDP
}

// PacketInfo holds the metadata a full decode extracts from a single packet.
type PacketInfo struct {
	FiveTuple FiveTuple
	Length    int
}

// PassVector holds one filter flag per packet id; non-zero means the packet
// passed. A nil PassVector means no filter is in effect.
type PassVector []uint32

// Passed reports whether packet id passes. With no filter every packet passes.
func (p PassVector) Passed(id int) bool {
	return p == nil || p[id] != 0
}

// Count returns the number of passing packets.
func (p PassVector) Count() uint64 {
	var n uint64
	for _, f := range p {
		if f != 0 {
			n++
		}
	}
	return n
}

// Counter accumulates the traffic seen for one source/destination pair.
type Counter struct {
	Packets uint64
	Bytes   uint64
}

// TrafficMatrix maps source endpoint to destination endpoint to traffic.
type TrafficMatrix map[gopacket.Endpoint]map[gopacket.Endpoint]Counter

// Add records one packet of the given wire length.
func (m TrafficMatrix) Add(src, dst gopacket.Endpoint, bytes uint64) {
	dsts, ok := m[src]
	if !ok {
		dsts = make(map[gopacket.Endpoint]Counter)
		m[src] = dsts
	}
	c := dsts[dst]
	c.Packets++
	c.Bytes += bytes
	dsts[dst] = c
}

// Merge sums other into m. Merging is associative and commutative, so the
// order partial matrices are merged in does not change the result.
func (m TrafficMatrix) Merge(other TrafficMatrix) {
	for src, odsts := range other {
		dsts, ok := m[src]
		if !ok {
			dsts = make(map[gopacket.Endpoint]Counter, len(odsts))
			m[src] = dsts
		}
		for dst, oc := range odsts {
			c := dsts[dst]
			c.Packets += oc.Packets
			c.Bytes += oc.Bytes
			dsts[dst] = c
		}
	}
}

// Lookup returns the counter for src -> dst.
func (m TrafficMatrix) Lookup(src, dst gopacket.Endpoint) (Counter, bool) {
	c, ok := m[src][dst]
	return c, ok
}

// Equal reports whether both matrices hold the same pairs and counts.
func (m TrafficMatrix) Equal(other TrafficMatrix) bool {
	if len(m) != len(other) {
		return false
	}
	for src, dsts := range m {
		odsts, ok := other[src]
		if !ok || len(dsts) != len(odsts) {
			return false
		}
		for dst, c := range dsts {
			if oc, ok := odsts[dst]; !ok || oc != c {
				return false
			}
		}
	}
	return true
}

// Sources returns the number of distinct sources.
func (m TrafficMatrix) Sources() int {
	return len(m)
}

// Flows returns the number of distinct source/destination pairs.
func (m TrafficMatrix) Flows() int {
	n := 0
	for _, dsts := range m {
		n += len(dsts)
	}
	return n
}

// Row is one flattened matrix cell.
type Row struct {
	Src gopacket.Endpoint
	Dst gopacket.Endpoint
	Counter
}

// Rows flattens the matrix, ordered by source then destination.
func (m TrafficMatrix) Rows() []Row {
	rows := make([]Row, 0, m.Flows())
	for src, dsts := range m {
		for dst, c := range dsts {
			rows = append(rows, Row{Src: src, Dst: dst, Counter: c})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Src != rows[j].Src {
			return rows[i].Src.LessThan(rows[j].Src)
		}
		return rows[i].Dst.LessThan(rows[j].Dst)
	})
	return rows
}
