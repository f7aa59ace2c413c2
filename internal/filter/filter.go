// Package filter compiles display filter expressions into offload predicates
// using libpcap.
package filter

import (
	"fmt"

	"CapMatrix/internal/offload"

	"github.com/google/gopacket/layers"
	libpcap "github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"
)

// DefaultSnapLen is used when the capture header declares no snap length.
const DefaultSnapLen = 262144

// Compile turns expr into a predicate for frames of linkType. An empty expr
// is rejected; callers skip filtering instead.
func Compile(expr string, linkType layers.LinkType, snaplen int) (*offload.Predicate, error) {
	if expr == "" {
		return nil, fmt.Errorf("%w: empty filter expression", offload.ErrInvalidPredicate)
	}
	if snaplen <= 0 {
		snaplen = DefaultSnapLen
	}

	insns, err := libpcap.CompileBPFFilter(linkType, snaplen, expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", offload.ErrInvalidPredicate, expr, err)
	}

	raw := make([]bpf.RawInstruction, len(insns))
	for i, in := range insns {
		raw[i] = bpf.RawInstruction{Op: in.Code, Jt: in.Jt, Jf: in.Jf, K: in.K}
	}
	return offload.NewPredicateRaw(expr, linkType, raw)
}
