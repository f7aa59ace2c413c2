package offload

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"golang.org/x/net/bpf"
)

// Predicate is a compiled per-packet filter. Its program is classic BPF run
// against the captured frame, link header included; a non-zero return value
// means the packet passes.
type Predicate struct {
	expr     string
	linkType layers.LinkType
	program  []bpf.Instruction
	raw      []bpf.RawInstruction
}

// NewPredicate assembles program into a predicate for frames of linkType.
// expr is kept for diagnostics only.
func NewPredicate(expr string, linkType layers.LinkType, program []bpf.Instruction) (*Predicate, error) {
	raw, err := bpf.Assemble(program)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
	}
	p := &Predicate{expr: expr, linkType: linkType, program: program, raw: raw}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewPredicateRaw builds a predicate from already assembled instructions, as
// produced by libpcap.
func NewPredicateRaw(expr string, linkType layers.LinkType, raw []bpf.RawInstruction) (*Predicate, error) {
	program, ok := bpf.Disassemble(raw)
	if !ok {
		return nil, fmt.Errorf("%w: program for %q contains undecodable instructions", ErrInvalidPredicate, expr)
	}
	p := &Predicate{expr: expr, linkType: linkType, program: program, raw: raw}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that the predicate holds a program the BPF VM accepts.
func (p *Predicate) Validate() error {
	if p == nil || len(p.program) == 0 {
		return ErrInvalidPredicate
	}
	if _, err := bpf.NewVM(p.program); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
	}
	return nil
}

func (p *Predicate) Expr() string {
	return p.expr
}

func (p *Predicate) LinkType() layers.LinkType {
	return p.linkType
}

// Program returns the decoded instructions.
func (p *Predicate) Program() []bpf.Instruction {
	return p.program
}

// Raw returns the assembled instructions, the form handed to native kernels.
func (p *Predicate) Raw() []bpf.RawInstruction {
	return p.raw
}

func (p *Predicate) String() string {
	return fmt.Sprintf("%q (%d insns, %s)", p.expr, len(p.program), p.linkType)
}
