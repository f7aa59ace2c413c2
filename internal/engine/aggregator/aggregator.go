package aggregator

import (
	"errors"
	"fmt"
	"time"

	"CapMatrix/internal/core/model"
	"CapMatrix/internal/engine/protocol"
	"CapMatrix/pkg/logutil"
	"CapMatrix/pkg/pcap"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidWorkers   = errors.New("worker count must be positive")
	ErrPassVectorLength = errors.New("pass vector length does not match index")
	ErrWorkerFailure    = errors.New("aggregation worker failed")
)

// WorkerError reports a worker that panicked while aggregating its range.
type WorkerError struct {
	Worker int
	Range  Range
	Cause  any
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %d (packets %d-%d): %v", e.Worker, e.Range.Lo, e.Range.Hi, e.Cause)
}

func (e *WorkerError) Unwrap() error {
	return ErrWorkerFailure
}

// Range is the half-open span [Lo, Hi) of packet ids one worker owns.
type Range struct {
	Lo, Hi int
}

func (r Range) Len() int {
	return r.Hi - r.Lo
}

// Partition splits n packet ids into contiguous ranges of ceil(n/workers)
// ids, the last one truncated. Ranges that would be empty are omitted, so
// fewer than workers ranges come back when n is small.
func Partition(n, workers int) []Range {
	if n <= 0 || workers <= 0 {
		return nil
	}
	size := (n + workers - 1) / workers
	ranges := make([]Range, 0, workers)
	for lo := 0; lo < n; lo += size {
		ranges = append(ranges, Range{Lo: lo, Hi: min(lo+size, n)})
	}
	return ranges
}

// Result is the merged outcome of an aggregation.
type Result struct {
	Matrix model.TrafficMatrix
	// Passed counts packets that passed the filter, Skipped those among them
	// too short to carry both addresses.
	Passed  uint64
	Skipped uint64
	Workers int
}

// partial is the private state of one worker.
type partial struct {
	matrix  model.TrafficMatrix
	passed  uint64
	skipped uint64
}

// Aggregate builds the traffic matrix of every packet in index that passes.
// A nil passes means every packet passes. Each worker accumulates its range
// into a private matrix; the partials are merged on the calling goroutine
// once all workers have finished. If any worker fails no matrix is returned.
func Aggregate(index pcap.CaptureIndex, buf []byte, passes model.PassVector, workers int, ex *protocol.Extractor) (*Result, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkers, workers)
	}
	if passes != nil && len(passes) != len(index) {
		return nil, fmt.Errorf("%w: %d flags for %d packets", ErrPassVectorLength, len(passes), len(index))
	}
	if ex == nil {
		return nil, errors.New("aggregator: nil extractor")
	}

	logger := logutil.GetLogger()
	start := time.Now()

	ranges := Partition(len(index), workers)
	partials := make([]partial, len(ranges))

	var g errgroup.Group
	for w, r := range ranges {
		w, r := w, r
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = &WorkerError{Worker: w, Range: r, Cause: rec}
				}
			}()
			partials[w] = aggregateRange(index[r.Lo:r.Hi], passes, r.Lo, buf, ex)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Matrix: make(model.TrafficMatrix), Workers: len(ranges)}
	for _, p := range partials {
		res.Matrix.Merge(p.matrix)
		res.Passed += p.passed
		res.Skipped += p.skipped
	}

	logger.Debug("Aggregation complete",
		zap.Int("packets", len(index)),
		zap.Int("workers", len(ranges)),
		zap.Uint64("passed", res.Passed),
		zap.Uint64("skipped", res.Skipped),
		zap.Int("flows", res.Matrix.Flows()),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// aggregateRange is one worker's loop over its slice of the index. base is
// the packet id of descs[0].
func aggregateRange(descs []pcap.PacketDescriptor, passes model.PassVector, base int, buf []byte, ex *protocol.Extractor) partial {
	p := partial{matrix: make(model.TrafficMatrix)}
	for i, d := range descs {
		if !passes.Passed(base + i) {
			continue
		}
		p.passed++
		src, dst, ok := ex.Endpoints(buf, d.Offset, d.CapLen)
		if !ok {
			p.skipped++
			continue
		}
		p.matrix.Add(src, dst, uint64(d.OrigLen))
	}
	return p
}
