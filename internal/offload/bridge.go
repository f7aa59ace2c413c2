package offload

import (
	"fmt"
	"time"

	"CapMatrix/internal/core/model"
	"CapMatrix/pkg/logutil"
	"CapMatrix/pkg/pcap"

	"go.uber.org/zap"
)

// Bridge hands a whole capture to a device in a single call and returns the
// owned result.
type Bridge struct {
	device Device
}

// NewBridge creates a bridge over device.
func NewBridge(device Device) *Bridge {
	return &Bridge{device: device}
}

// Device returns the underlying device.
func (b *Bridge) Device() Device {
	return b.device
}

// Evaluate runs p over every packet of index. Only record offsets cross the
// boundary; the device re-derives header fields from buf. The caller owns
// the returned Result and must Release it.
func (b *Bridge) Evaluate(index pcap.CaptureIndex, buf []byte, p *Predicate) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(index) == 0 {
		return newResult(model.PassVector{}, 0, nil), nil
	}

	logger := logutil.GetLogger()
	start := time.Now()

	res, err := b.device.Evaluate(index.Offsets(), buf, p)
	if err != nil {
		return nil, fmt.Errorf("device '%s': %w", b.device.Name(), err)
	}
	if res.Len() != len(index) {
		got := res.Len()
		res.Release()
		return nil, fmt.Errorf("%w: device '%s' returned %d flags for %d packets", ErrResultLength, b.device.Name(), got, len(index))
	}

	logger.Debug("Filter evaluated",
		zap.String("device", b.device.Name()),
		zap.Stringer("predicate", p),
		zap.Int("packets", len(index)),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}
