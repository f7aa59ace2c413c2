package offload

import (
	"encoding/binary"
	"fmt"
	"sync"

	"CapMatrix/internal/config"
	"CapMatrix/internal/core/model"

	"golang.org/x/net/bpf"
)

const (
	flagSize        = 4
	recordHeaderLen = 16
)

func init() {
	RegisterDevice("host", newHostDevice)
}

// hostDevice emulates the accelerator on CPU: a fixed set of goroutines, one
// BPF VM each, evaluates disjoint ranges of packet ids.
type hostDevice struct {
	parallelism int
	budget      memoryBudget
}

func newHostDevice(cfg config.DeviceConfig) (Device, error) {
	if cfg.Parallelism <= 0 {
		return nil, fmt.Errorf("parallelism must be positive, got %d", cfg.Parallelism)
	}
	if cfg.MemoryBytes <= 0 {
		return nil, fmt.Errorf("memory_bytes must be positive, got %d", cfg.MemoryBytes)
	}
	d := &hostDevice{parallelism: cfg.Parallelism}
	d.budget.capacity = cfg.MemoryBytes
	return d, nil
}

func (d *hostDevice) Name() string {
	return "host"
}

func (d *hostDevice) Stats() DeviceStats {
	return d.budget.stats()
}

func (d *hostDevice) Close() error {
	return nil
}

func (d *hostDevice) Evaluate(offsets []uint64, buf []byte, p *Predicate) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	n := len(offsets)
	size := int64(n) * flagSize
	if err := d.budget.reserve(size); err != nil {
		return nil, err
	}
	flags := make(model.PassVector, n)

	chunk := (n + d.parallelism - 1) / d.parallelism
	if chunk == 0 {
		chunk = 1
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			if err := evalRange(p.Program(), offsets[lo:hi], buf, flags[lo:hi]); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(lo, hi)
	}
	wg.Wait()

	if firstErr != nil {
		d.budget.free(size)
		return nil, firstErr
	}
	return newResult(flags, size, func() { d.budget.free(size) }), nil
}

// evalRange is the per-thread kernel body: it re-reads each record header
// and runs the filter over the captured frame.
func evalRange(program []bpf.Instruction, offsets []uint64, buf []byte, out []uint32) error {
	vm, err := bpf.NewVM(program)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
	}
	size := uint64(len(buf))
	for i, off := range offsets {
		if off+recordHeaderLen > size {
			return fmt.Errorf("%w: record offset %d outside %d-byte buffer", ErrKernelFault, off, size)
		}
		capLen := uint64(binary.NativeEndian.Uint32(buf[off+8 : off+12]))
		start := off + recordHeaderLen
		if start+capLen > size {
			return fmt.Errorf("%w: record at offset %d overruns buffer", ErrKernelFault, off)
		}
		keep, err := vm.Run(buf[start : start+capLen])
		if err != nil {
			return fmt.Errorf("%w: record at offset %d: %v", ErrKernelFault, off, err)
		}
		if keep > 0 {
			out[i] = 1
		}
	}
	return nil
}
