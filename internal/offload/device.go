package offload

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"CapMatrix/internal/config"
)

// Device evaluates a predicate over every packet of a capture in one
// synchronous call. Implementations must treat packets independently.
type Device interface {
	Name() string
	// Evaluate runs p over the records at offsets. The returned Result has
	// exactly len(offsets) flags and belongs to the caller.
	Evaluate(offsets []uint64, buf []byte, p *Predicate) (*Result, error)
	Stats() DeviceStats
	Close() error
}

// DeviceStats tracks result allocations so leaked results are visible.
type DeviceStats struct {
	BytesInUse  int64
	Allocations uint64
	Releases    uint64
}

// DeviceFactory creates a device from its configuration.
type DeviceFactory func(cfg config.DeviceConfig) (Device, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]DeviceFactory)
)

// RegisterDevice registers a device type with its factory function.
func RegisterDevice(name string, factory DeviceFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("device type '%s' already registered", name))
	}
	registry[name] = factory
}

// Devices lists the device types built into this binary.
func Devices() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenDevice creates the device selected by cfg.Type.
func OpenDevice(cfg config.DeviceConfig) (Device, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: '%s' (built: %v)", ErrUnknownDevice, cfg.Type, Devices())
	}

	dev, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("error opening device '%s': %w", cfg.Type, err)
	}
	return dev, nil
}

// memoryBudget bounds the result memory a device hands out.
type memoryBudget struct {
	capacity    int64
	inUse       atomic.Int64
	allocations atomic.Uint64
	releases    atomic.Uint64
}

func (m *memoryBudget) reserve(n int64) error {
	for {
		cur := m.inUse.Load()
		if cur+n > m.capacity {
			return fmt.Errorf("%w: need %d bytes, %d of %d in use", ErrOutOfMemory, n, cur, m.capacity)
		}
		if m.inUse.CompareAndSwap(cur, cur+n) {
			m.allocations.Add(1)
			return nil
		}
	}
}

func (m *memoryBudget) free(n int64) {
	m.inUse.Add(-n)
	m.releases.Add(1)
}

func (m *memoryBudget) stats() DeviceStats {
	return DeviceStats{
		BytesInUse:  m.inUse.Load(),
		Allocations: m.allocations.Load(),
		Releases:    m.releases.Load(),
	}
}
