//go:build cuda

package offload

/*
#cgo CFLAGS: -I${SRCDIR}/../../kernel
#cgo LDFLAGS: -L${SRCDIR}/../../kernel -lcapmatrix_kernel -L/usr/local/cuda/lib64 -lcudart -lstdc++
#include "capmatrix_kernel.h"
*/
import "C"

import (
	"fmt"
	"unsafe"

	"CapMatrix/internal/config"
	"CapMatrix/internal/core/model"
)

func init() {
	RegisterDevice("cuda", newCUDADevice)
}

// cudaDevice runs the filter kernel on the first CUDA device. The kernel
// returns managed memory that stays allocated until the Result is released.
type cudaDevice struct {
	budget memoryBudget
}

func newCUDADevice(cfg config.DeviceConfig) (Device, error) {
	var count C.int
	if rc := C.cm_device_count(&count); rc != C.CM_OK || count == 0 {
		return nil, fmt.Errorf("%w: no CUDA device (status %d)", ErrUnavailable, int(rc))
	}
	d := &cudaDevice{}
	d.budget.capacity = cfg.MemoryBytes
	return d, nil
}

func (d *cudaDevice) Name() string {
	return "cuda"
}

func (d *cudaDevice) Stats() DeviceStats {
	return d.budget.stats()
}

func (d *cudaDevice) Close() error {
	return nil
}

func (d *cudaDevice) Evaluate(offsets []uint64, buf []byte, p *Predicate) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := len(offsets)
	if n == 0 {
		return newResult(model.PassVector{}, 0, nil), nil
	}

	size := int64(n) * flagSize
	if err := d.budget.reserve(size); err != nil {
		return nil, err
	}

	raw := p.Raw()
	prog := make([]C.cm_insn, len(raw))
	for i, in := range raw {
		prog[i] = C.cm_insn{code: C.uint16_t(in.Op), jt: C.uint8_t(in.Jt), jf: C.uint8_t(in.Jf), k: C.uint32_t(in.K)}
	}

	var status C.int
	ptr := C.cm_eval(
		C.size_t(n),
		(*C.uint64_t)(unsafe.Pointer(&offsets[0])),
		(*C.uint8_t)(unsafe.Pointer(&buf[0])),
		C.size_t(len(buf)),
		&prog[0],
		C.size_t(len(prog)),
		&status,
	)
	if ptr == nil {
		d.budget.free(size)
		if status == C.CM_ERR_NOMEM {
			return nil, fmt.Errorf("%w: cuda allocation of %d packets failed", ErrOutOfMemory, n)
		}
		return nil, fmt.Errorf("%w: cuda status %d", ErrUnavailable, int(status))
	}

	flags := model.PassVector(unsafe.Slice((*uint32)(unsafe.Pointer(ptr)), n))
	return newResult(flags, size, func() {
		C.cm_free(ptr)
		d.budget.free(size)
	}), nil
}
