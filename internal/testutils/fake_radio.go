package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/device"
)

// ErrUnknownPeripheral is reported by FakeRadio when dialing an address nobody registered.
var ErrUnknownPeripheral = errors.New("fake radio: unknown peripheral")

// FakeRadio is a scripted, in-memory device.Radio.
//
// Scan delivers the configured advertisements and then blocks until its context
// is done. Connect dials peripherals registered through WithPeripheral.
type FakeRadio struct {
	logger *logrus.Logger

	mu          sync.Mutex
	adverts     []device.Advertisement
	scanErr     error
	scanHandler func(device.Advertisement)
	scanCalls   int
	scanning    bool
	scanStarted chan struct{}
	dials       []string
	openAtDial  []int
	scanAtDial  []bool
	established []*FakeLink
	peripherals map[string]*FakePeripheral
	links       chan *FakeLink
}

var _ device.Radio = (*FakeRadio)(nil)

// NewFakeRadio creates an empty FakeRadio.
func NewFakeRadio(logger *logrus.Logger) *FakeRadio {
	if logger == nil {
		logger = logrus.New()
	}
	return &FakeRadio{
		logger:      logger,
		scanStarted: make(chan struct{}, 16),
		peripherals: make(map[string]*FakePeripheral),
		links:       make(chan *FakeLink, 16),
	}
}

// WithAdvertisements appends advertisements delivered by every Scan call.
func (r *FakeRadio) WithAdvertisements(ads ...device.Advertisement) *FakeRadio {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adverts = append(r.adverts, ads...)
	return r
}

// WithScanError makes Scan fail immediately with err.
func (r *FakeRadio) WithScanError(err error) *FakeRadio {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanErr = err
	return r
}

// WithPeripheral starts describing the peripheral reachable at address.
func (r *FakeRadio) WithPeripheral(address string) *PeripheralBuilder {
	return &PeripheralBuilder{
		radio: r,
		p:     &FakePeripheral{Address: address},
	}
}

func (r *FakeRadio) Scan(ctx context.Context, _ bool, handler func(device.Advertisement)) error {
	r.mu.Lock()
	r.scanCalls++
	if r.scanErr != nil {
		err := r.scanErr
		r.mu.Unlock()
		return err
	}
	r.scanHandler = handler
	r.scanning = true
	adverts := append([]device.Advertisement(nil), r.adverts...)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.scanning = false
		r.mu.Unlock()
	}()

	select {
	case r.scanStarted <- struct{}{}:
	default:
	}

	for _, adv := range adverts {
		if ctx.Err() != nil {
			break
		}
		handler(adv)
	}

	<-ctx.Done()
	return ctx.Err()
}

// Advertise delivers adv to the handler of the most recent Scan call,
// even when that scan already returned. Reports false if Scan was never called.
func (r *FakeRadio) Advertise(adv device.Advertisement) bool {
	r.mu.Lock()
	h := r.scanHandler
	r.mu.Unlock()

	if h == nil {
		return false
	}
	h(adv)
	return true
}

// WaitScanStarted blocks until a Scan call begins delivering advertisements.
func (r *FakeRadio) WaitScanStarted(timeout time.Duration) bool {
	select {
	case <-r.scanStarted:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Scanning reports whether a Scan call is in progress.
func (r *FakeRadio) Scanning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scanning
}

// ScanCalls returns how many times Scan was called.
func (r *FakeRadio) ScanCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scanCalls
}

// Dials returns the addresses passed to Connect, in call order.
func (r *FakeRadio) Dials() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.dials...)
}

// OpenLinksAtDial returns, for every Connect call, how many links handed out
// earlier were still open at that moment.
func (r *FakeRadio) OpenLinksAtDial() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.openAtDial...)
}

// ScanningAtDial returns, for every Connect call, whether a Scan was running.
func (r *FakeRadio) ScanningAtDial() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.scanAtDial...)
}

// NextLink waits for the next link established by Connect.
func (r *FakeRadio) NextLink(timeout time.Duration) (*FakeLink, bool) {
	select {
	case l := <-r.links:
		return l, true
	case <-time.After(timeout):
		return nil, false
	}
}

func (r *FakeRadio) Connect(ctx context.Context, address string) <-chan device.LinkEvent {
	events := make(chan device.LinkEvent, 2)

	r.mu.Lock()
	r.dials = append(r.dials, address)
	open := 0
	for _, l := range r.established {
		if !l.Closed() {
			open++
		}
	}
	r.openAtDial = append(r.openAtDial, open)
	r.scanAtDial = append(r.scanAtDial, r.scanning)
	p := r.peripherals[address]
	r.mu.Unlock()

	go func() {
		defer close(events)

		if p == nil {
			events <- device.LinkEvent{Kind: device.LinkFailed, Err: ErrUnknownPeripheral}
			return
		}

		if p.connectHold != nil {
			select {
			case <-p.connectHold:
			case <-ctx.Done():
				events <- device.LinkEvent{Kind: device.LinkFailed, Err: ctx.Err()}
				return
			}
		}

		if p.connectErr != nil {
			events <- device.LinkEvent{Kind: device.LinkFailed, Err: p.connectErr}
			return
		}

		l := newFakeLink(p)
		r.mu.Lock()
		r.established = append(r.established, l)
		r.mu.Unlock()
		r.logger.WithField("address", address).Debug("Fake link established")
		events <- device.LinkEvent{Kind: device.LinkEstablished, Link: l}

		select {
		case r.links <- l:
		default:
		}

		select {
		case <-l.dropped:
			events <- device.LinkEvent{Kind: device.LinkLost, Err: device.ErrLinkLost}
		case <-l.hostClosed:
		}
	}()

	return events
}

// FakePeripheral describes a remote device reachable through FakeRadio.
type FakePeripheral struct {
	Address  string
	Services []device.ServiceInfo

	connectErr   error
	connectHold  <-chan struct{}
	discoverErr  error
	discoverHold <-chan struct{}
	subscribeErr error
	writeErr     error
}

// PeripheralBuilder configures a FakePeripheral with a fluent API.
type PeripheralBuilder struct {
	radio *FakeRadio
	p     *FakePeripheral
}

// WithService adds a service; following WithCharacteristic calls attach to it.
func (b *PeripheralBuilder) WithService(uuid string) *PeripheralBuilder {
	b.p.Services = append(b.p.Services, device.ServiceInfo{UUID: uuid, Handle: uuid})
	return b
}

// WithCharacteristic adds a characteristic to the last service.
func (b *PeripheralBuilder) WithCharacteristic(uuid string) *PeripheralBuilder {
	if len(b.p.Services) == 0 {
		panic("WithCharacteristic: no service configured")
	}
	svc := &b.p.Services[len(b.p.Services)-1]
	svc.Characteristics = append(svc.Characteristics, device.CharacteristicInfo{UUID: uuid, Handle: uuid})
	return b
}

// WithDescriptor adds a descriptor to the last characteristic.
func (b *PeripheralBuilder) WithDescriptor(uuid string) *PeripheralBuilder {
	if len(b.p.Services) == 0 {
		panic("WithDescriptor: no service configured")
	}
	svc := &b.p.Services[len(b.p.Services)-1]
	if len(svc.Characteristics) == 0 {
		panic("WithDescriptor: no characteristic configured")
	}
	char := &svc.Characteristics[len(svc.Characteristics)-1]
	char.Descriptors = append(char.Descriptors, device.DescriptorInfo{UUID: uuid, Handle: uuid})
	return b
}

// WithHeartRateProfile adds the heart rate service, measurement characteristic and CCCD.
func (b *PeripheralBuilder) WithHeartRateProfile() *PeripheralBuilder {
	return b.WithService("180D").WithCharacteristic("2A37").WithDescriptor("2902")
}

// WithConnectError makes dialing fail with err.
func (b *PeripheralBuilder) WithConnectError(err error) *PeripheralBuilder {
	b.p.connectErr = err
	return b
}

// WithConnectHold keeps dialing pending until hold is closed or the dial context is done.
func (b *PeripheralBuilder) WithConnectHold(hold <-chan struct{}) *PeripheralBuilder {
	b.p.connectHold = hold
	return b
}

// WithDiscoverError makes service discovery fail with err.
func (b *PeripheralBuilder) WithDiscoverError(err error) *PeripheralBuilder {
	b.p.discoverErr = err
	return b
}

// WithDiscoverHold keeps service discovery pending until hold is closed or its context is done.
func (b *PeripheralBuilder) WithDiscoverHold(hold <-chan struct{}) *PeripheralBuilder {
	b.p.discoverHold = hold
	return b
}

// WithSubscribeError makes Subscribe fail with err.
func (b *PeripheralBuilder) WithSubscribeError(err error) *PeripheralBuilder {
	b.p.subscribeErr = err
	return b
}

// WithWriteError makes descriptor writes fail with err.
func (b *PeripheralBuilder) WithWriteError(err error) *PeripheralBuilder {
	b.p.writeErr = err
	return b
}

// Build registers the peripheral with the radio and returns it.
func (b *PeripheralBuilder) Build() *FakePeripheral {
	b.radio.mu.Lock()
	defer b.radio.mu.Unlock()
	b.radio.peripherals[b.p.Address] = b.p
	return b.p
}

// DescriptorWrite records a single WriteDescriptor call.
type DescriptorWrite struct {
	UUID  string
	Value []byte
}

// FakeLink is the device.Link handed out by FakeRadio.
type FakeLink struct {
	p *FakePeripheral

	mu         sync.Mutex
	writes     []DescriptorWrite
	subscribed []string
	closeCalls int

	in         chan device.Notification
	closed     chan struct{}
	hostClosed chan struct{}
	dropped    chan struct{}
	closeOnce  sync.Once
	hostOnce   sync.Once
	dropOnce   sync.Once
}

var _ device.Link = (*FakeLink)(nil)

func newFakeLink(p *FakePeripheral) *FakeLink {
	return &FakeLink{
		p:          p,
		in:         make(chan device.Notification, 64),
		closed:     make(chan struct{}),
		hostClosed: make(chan struct{}),
		dropped:    make(chan struct{}),
	}
}

func (l *FakeLink) Address() string {
	return l.p.Address
}

func (l *FakeLink) DiscoverServices(ctx context.Context) ([]device.ServiceInfo, error) {
	if l.p.discoverHold != nil {
		select {
		case <-l.p.discoverHold:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-l.closed:
			return nil, device.ErrLinkLost
		}
	}
	if l.p.discoverErr != nil {
		return nil, l.p.discoverErr
	}
	return l.p.Services, nil
}

func (l *FakeLink) Subscribe(_ context.Context, char device.CharacteristicInfo) (<-chan device.Notification, error) {
	if l.p.subscribeErr != nil {
		return nil, l.p.subscribeErr
	}

	l.mu.Lock()
	l.subscribed = append(l.subscribed, char.UUID)
	l.mu.Unlock()

	out := make(chan device.Notification)
	go func() {
		defer close(out)
		for {
			select {
			case <-l.closed:
				return
			case n := <-l.in:
				select {
				case out <- n:
				case <-l.closed:
					return
				}
			}
		}
	}()
	return out, nil
}

func (l *FakeLink) WriteDescriptor(_ context.Context, desc device.DescriptorInfo, value []byte) error {
	l.mu.Lock()
	l.writes = append(l.writes, DescriptorWrite{UUID: desc.UUID, Value: append([]byte(nil), value...)})
	l.mu.Unlock()
	return l.p.writeErr
}

func (l *FakeLink) Close() error {
	l.mu.Lock()
	l.closeCalls++
	l.mu.Unlock()

	l.hostOnce.Do(func() { close(l.hostClosed) })
	l.shutdown()
	return nil
}

func (l *FakeLink) shutdown() {
	l.closeOnce.Do(func() { close(l.closed) })
}

// Notify pushes a notification payload towards the subscriber.
// Reports false when the link is already closed.
func (l *FakeLink) Notify(payload []byte) bool {
	select {
	case <-l.closed:
		return false
	default:
	}

	select {
	case l.in <- device.Notification{Payload: append([]byte(nil), payload...), Received: time.Now()}:
		return true
	case <-l.closed:
		return false
	}
}

// Drop simulates the peripheral going out of range.
func (l *FakeLink) Drop() {
	l.dropOnce.Do(func() { close(l.dropped) })
	l.shutdown()
}

// Writes returns the descriptor writes issued so far.
func (l *FakeLink) Writes() []DescriptorWrite {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]DescriptorWrite(nil), l.writes...)
}

// Subscribed returns the characteristic UUIDs passed to Subscribe.
func (l *FakeLink) Subscribed() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.subscribed...)
}

// Closed reports whether the link was shut down by either side.
func (l *FakeLink) Closed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

// CloseCalls returns how many times Close was called.
func (l *FakeLink) CloseCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeCalls
}
