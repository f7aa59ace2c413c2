package offload

import (
	"sync/atomic"

	"CapMatrix/internal/core/model"
)

// Result owns the pass vector an accelerator produced. The receiver must call
// Release exactly once after it has finished reading the vector; Release
// frees the device allocation behind it.
type Result struct {
	flags    model.PassVector
	bytes    int64
	release  func()
	released atomic.Bool
}

func newResult(flags model.PassVector, bytes int64, release func()) *Result {
	if flags == nil {
		flags = model.PassVector{}
	}
	return &Result{flags: flags, bytes: bytes, release: release}
}

// Len returns the number of flags, one per packet id.
func (r *Result) Len() int {
	return len(r.flags)
}

// Bytes returns the size of the device allocation.
func (r *Result) Bytes() int64 {
	return r.bytes
}

// Vector returns the pass vector. It must not be used after Release; once
// released, Vector returns an empty vector.
func (r *Result) Vector() model.PassVector {
	if r.released.Load() {
		return model.PassVector{}
	}
	return r.flags
}

// PassCount returns the number of passing packets.
func (r *Result) PassCount() uint64 {
	return r.Vector().Count()
}

// Released reports whether Release has been called.
func (r *Result) Released() bool {
	return r.released.Load()
}

// Release frees the device allocation. Calls after the first return ErrReleased.
func (r *Result) Release() error {
	if !r.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	r.flags = nil
	if r.release != nil {
		r.release()
	}
	return nil
}
