package offload

import (
	"errors"
	"fmt"
)

// ErrUnavailable is the parent of every failure that leaves the run without
// a usable accelerator. None of them are retried.
var ErrUnavailable = errors.New("offload: accelerator unavailable")

var (
	ErrOutOfMemory      = fmt.Errorf("%w: out of device memory", ErrUnavailable)
	ErrInvalidPredicate = fmt.Errorf("%w: invalid or uncompiled predicate", ErrUnavailable)
	ErrUnknownDevice    = fmt.Errorf("%w: unknown device", ErrUnavailable)
)

var (
	ErrKernelFault  = errors.New("offload: kernel fault")
	ErrResultLength = errors.New("offload: result length does not match packet count")
	ErrReleased     = errors.New("offload: result already released")
)
