package scanner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/groutine"
	"github.com/srg/hrmon/internal/registry"
	"github.com/srg/hrmon/internal/session"
)

// DefaultScanDuration is the length of a discovery window
const DefaultScanDuration = 5 * time.Second

// ScanOptions configures scanning behavior
type ScanOptions struct {
	// Duration bounds the discovery window; zero scans until StopScan.
	Duration        time.Duration
	DuplicateFilter bool
	ServiceUUIDs    []string
	AllowList       []string
	BlockList       []string
}

// DefaultScanOptions returns default scanning options
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:        DefaultScanDuration,
		DuplicateFilter: true,
	}
}

// Scanner runs timed discovery windows and feeds the device registry.
// At most one radio scan is in flight at any time.
type Scanner struct {
	radio    device.ScanningDevice
	registry *registry.Registry
	store    *session.Store
	logger   *logrus.Logger

	mu     sync.Mutex
	active *scanRun
}

// scanRun is a single discovery window; accepting is guarded by Scanner.mu.
type scanRun struct {
	ctx       context.Context
	cancel    context.CancelFunc
	opts      *ScanOptions
	accepting bool
	done      chan struct{}
	err       error
}

// NewScanner creates a scanner publishing into store.
func NewScanner(radio device.ScanningDevice, reg *registry.Registry, store *session.Store, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		radio:    radio,
		registry: reg,
		store:    store,
		logger:   logger,
	}
}

// StartScan begins a discovery window of the given duration with default filters.
func (s *Scanner) StartScan(duration time.Duration) error {
	opts := DefaultScanOptions()
	opts.Duration = duration
	return s.Start(opts)
}

// Start begins a discovery window and returns immediately.
// It fails with device.ErrScanAlreadyActive while another window is open.
func (s *Scanner) Start(opts *ScanOptions) error {
	if opts == nil {
		opts = DefaultScanOptions()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return device.ErrScanAlreadyActive
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if opts.Duration > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), opts.Duration)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	run := &scanRun{
		ctx:       ctx,
		cancel:    cancel,
		opts:      opts,
		accepting: true,
		done:      make(chan struct{}),
	}
	s.active = run
	s.store.SetScanning(true, nil)

	s.logger.WithFields(logrus.Fields{
		"duration":         opts.Duration,
		"duplicate_filter": opts.DuplicateFilter,
	}).Info("Starting BLE scan...")

	groutine.Go(ctx, "ble-scan", func(ctx context.Context) {
		err := s.radio.Scan(ctx, !opts.DuplicateFilter, func(adv device.Advertisement) {
			s.handleAdvertisement(run, adv)
		})
		s.finish(run, err)
	})

	return nil
}

// StopScan ends the active window early. It never blocks and is a no-op when idle.
func (s *Scanner) StopScan() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return
	}
	s.active.accepting = false
	s.active.cancel()
	s.logger.Debug("Scan stop requested")
}

// Scanning reports whether a discovery window is open.
func (s *Scanner) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Wait blocks until the active window completes and returns its radio error.
// It returns nil immediately when no scan is running.
func (s *Scanner) Wait(ctx context.Context) error {
	s.mu.Lock()
	run := s.active
	s.mu.Unlock()

	if run == nil {
		return nil
	}

	select {
	case <-run.done:
		return run.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scanner) finish(run *scanRun, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run.accepting = false
	run.cancel()
	run.err = err
	if s.active == run {
		s.active = nil
	}

	s.store.FinishScan(s.registry.Snapshot(), err)
	close(run.done)

	entry := s.logger.WithField("device_count", s.registry.Len())
	if err != nil {
		entry.WithError(err).Error("BLE scan failed")
		return
	}
	entry.Info("BLE scan completed")
}

// handleAdvertisement upserts a discovery unless the window is already closing.
func (s *Scanner) handleAdvertisement(run *scanRun, adv device.Advertisement) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !run.accepting || run.ctx.Err() != nil {
		s.logger.WithField("address", adv.Addr()).Debug("Dropping discovery received after scan stop")
		return
	}

	p := device.NewPeripheralHandle(adv, time.Now())
	if !shouldIncludeDevice(p, run.opts) {
		return
	}

	if s.registry.Upsert(p) {
		s.logger.WithFields(logrus.Fields{
			"device":  p.DisplayName(),
			"address": p.Address,
			"rssi":    p.RSSI,
		}).Info("Discovered new device")
	}
	s.store.SetDevices(s.registry.Snapshot())
}

// shouldIncludeDevice applies the allow/block/service filters
func shouldIncludeDevice(p device.PeripheralHandle, opts *ScanOptions) bool {
	for _, blocked := range opts.BlockList {
		if equalAddress(p.Address, blocked) {
			return false
		}
	}

	if len(opts.AllowList) > 0 {
		allowed := false
		for _, a := range opts.AllowList {
			if equalAddress(p.Address, a) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if len(opts.ServiceUUIDs) > 0 {
		for _, required := range opts.ServiceUUIDs {
			if p.Advertises(required) {
				return true
			}
		}
		return false
	}

	return true
}

func equalAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
