package manager

import (
	"errors"
	"fmt"
	"time"

	"CapMatrix/internal/config"
	"CapMatrix/internal/core/model"
	"CapMatrix/internal/engine/aggregator"
	"CapMatrix/internal/engine/protocol"
	"CapMatrix/internal/metrics"
	"CapMatrix/internal/offload"
	"CapMatrix/pkg/logutil"
	"CapMatrix/pkg/pcap"

	"github.com/google/gopacket/layers"
	"go.uber.org/zap"
)

// Pipeline stages, in the order they run.
const (
	StageHeader    = "header"
	StageIndex     = "index"
	StageOffload   = "offload"
	StageAggregate = "aggregate"
)

// StageError names the pipeline stage a run failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Offset returns the buffer offset of the offending record when the cause
// carries one.
func (e *StageError) Offset() (int, bool) {
	var terr *pcap.TruncationError
	if errors.As(e.Err, &terr) {
		return terr.Offset, true
	}
	return 0, false
}

// CompileFunc turns a filter expression into a predicate for the capture's
// link type and snap length.
type CompileFunc func(expr string, linkType layers.LinkType, snaplen int) (*offload.Predicate, error)

// Timings holds the wall time of each stage of a run.
type Timings struct {
	Index     time.Duration
	Offload   time.Duration
	Aggregate time.Duration
	Total     time.Duration
}

// Report is the outcome of one run.
type Report struct {
	Header   pcap.GlobalHeader
	Packets  int
	Filtered bool
	Passed   uint64
	Skipped  uint64
	Workers  int
	Matrix   model.TrafficMatrix
	Timings  Timings
}

// Manager runs captures through the index, offload and aggregate stages.
type Manager struct {
	cfg     *config.Config
	bridge  *offload.Bridge
	compile CompileFunc
	metrics *metrics.Recorder
}

// Option configures a Manager.
type Option func(*Manager)

// WithCompiler sets the filter compiler. Without one, runs with a filter fail
// in the offload stage.
func WithCompiler(fn CompileFunc) Option {
	return func(m *Manager) {
		m.compile = fn
	}
}

// WithMetrics records into rec instead of a private recorder.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(m *Manager) {
		m.metrics = rec
	}
}

// NewManager validates cfg and opens the configured filter device.
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dev, err := offload.OpenDevice(cfg.Device)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:    cfg,
		bridge: offload.NewBridge(dev),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = metrics.NewRecorder()
	}

	logutil.GetLogger().Info("Manager initialized",
		zap.String("device", dev.Name()),
		zap.Int("workers", cfg.Pipeline.NumWorkers),
		zap.String("filter", cfg.Pipeline.Filter))
	return m, nil
}

// Device returns the filter device the manager opened.
func (m *Manager) Device() offload.Device {
	return m.bridge.Device()
}

// Metrics returns the recorder the manager reports into.
func (m *Manager) Metrics() *metrics.Recorder {
	return m.metrics
}

// Close releases the filter device.
func (m *Manager) Close() error {
	return m.bridge.Device().Close()
}

// Run processes one capture held in buf. Stages run strictly in order and
// the first failure ends the run; the returned error is a *StageError.
func (m *Manager) Run(buf []byte) (*Report, error) {
	logger := logutil.GetLogger()
	start := time.Now()
	report := &Report{}

	hdr, err := pcap.ValidateHeader(buf)
	if err != nil {
		return nil, &StageError{Stage: StageHeader, Err: err}
	}
	report.Header = hdr

	var exOpts []protocol.Option
	if m.cfg.Pipeline.EtherTypeCheck {
		exOpts = append(exOpts, protocol.WithEtherTypeCheck())
	}
	ex, err := protocol.NewExtractor(hdr.LinkType(), exOpts...)
	if err != nil {
		return nil, &StageError{Stage: StageHeader, Err: err}
	}
	logger.Debug("Capture header validated", zap.Stringer("header", hdr))

	stageStart := time.Now()
	index, err := pcap.BuildIndex(buf)
	if err != nil {
		return nil, &StageError{Stage: StageIndex, Err: err}
	}
	report.Packets = len(index)
	report.Timings.Index = time.Since(stageStart)
	m.metrics.AddIndexed(len(index))
	m.metrics.ObserveStage(StageIndex, report.Timings.Index)
	logger.Debug("Capture indexed",
		zap.Int("packets", len(index)),
		zap.Duration("elapsed", report.Timings.Index))

	var passes model.PassVector
	if expr := m.cfg.Pipeline.Filter; expr != "" {
		stageStart = time.Now()
		res, err := m.evaluate(expr, hdr, index, buf)
		if err != nil {
			return nil, &StageError{Stage: StageOffload, Err: err}
		}
		defer m.release(res)

		passes = res.Vector()
		report.Filtered = true
		report.Timings.Offload = time.Since(stageStart)
		m.metrics.ObserveStage(StageOffload, report.Timings.Offload)
	}

	stageStart = time.Now()
	agg, err := aggregator.Aggregate(index, buf, passes, m.cfg.Pipeline.NumWorkers, ex)
	if err != nil {
		return nil, &StageError{Stage: StageAggregate, Err: err}
	}
	report.Timings.Aggregate = time.Since(stageStart)
	m.metrics.ObserveStage(StageAggregate, report.Timings.Aggregate)

	report.Passed = agg.Passed
	report.Skipped = agg.Skipped
	report.Workers = agg.Workers
	report.Matrix = agg.Matrix
	report.Timings.Total = time.Since(start)

	m.metrics.AddPassed(agg.Passed)
	m.metrics.AddSkipped(agg.Skipped)
	m.metrics.SetMatrix(agg.Matrix.Sources(), agg.Matrix.Flows())

	logger.Info("Capture processed",
		zap.Int("packets", report.Packets),
		zap.Bool("filtered", report.Filtered),
		zap.Uint64("passed", report.Passed),
		zap.Uint64("skipped", report.Skipped),
		zap.Int("flows", agg.Matrix.Flows()),
		zap.Duration("elapsed", report.Timings.Total))
	return report, nil
}

func (m *Manager) evaluate(expr string, hdr pcap.GlobalHeader, index pcap.CaptureIndex, buf []byte) (*offload.Result, error) {
	if m.compile == nil {
		return nil, fmt.Errorf("%w: no filter compiler configured for %q", offload.ErrInvalidPredicate, expr)
	}
	pred, err := m.compile(expr, hdr.LinkType(), int(hdr.SnapLen))
	if err != nil {
		return nil, err
	}
	res, err := m.bridge.Evaluate(index, buf, pred)
	if err != nil {
		return nil, err
	}
	m.metrics.SetDeviceInUse(m.bridge.Device().Stats().BytesInUse)
	return res, nil
}

func (m *Manager) release(res *offload.Result) {
	if err := res.Release(); err != nil {
		logutil.GetLogger().Warn("Failed to release filter result", zap.Error(err))
	}
	m.metrics.SetDeviceInUse(m.bridge.Device().Stats().BytesInUse)
}
