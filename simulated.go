package serial

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// SimulatedScheme is the scheme under which DefaultSimulator is registered.
const SimulatedScheme = "simulated"

// DefaultSimulator serves simulated://name identifiers.
var DefaultSimulator = NewSimulator()

// SimReply is one scripted read result of a simulated device.
type SimReply struct {
	Data []byte
	Err  error
	// Silent makes the readiness notification time out for this attempt;
	// a plain read of a silent reply returns zero bytes.
	Silent bool
}

// Responder produces the replies a simulated device queues for a request.
type Responder func(request []byte) []SimReply

// Reply answers every request with s in a single read.
func Reply(s string) Responder {
	return func([]byte) []SimReply {
		return []SimReply{{Data: []byte(s)}}
	}
}

// Fragments answers every request with one read per fragment.
func Fragments(frags ...string) Responder {
	return func([]byte) []SimReply {
		replies := make([]SimReply, len(frags))
		for i, f := range frags {
			replies[i] = SimReply{Data: []byte(f)}
		}
		return replies
	}
}

// Replies answers every request with the given scripted replies.
func Replies(replies ...SimReply) Responder {
	return func([]byte) []SimReply {
		out := make([]SimReply, len(replies))
		copy(out, replies)
		return out
	}
}

// Echo answers with the request followed by suffix.
func Echo(suffix string) Responder {
	return func(req []byte) []SimReply {
		data := append(append([]byte{}, req...), suffix...)
		return []SimReply{{Data: data}}
	}
}

// Silence never answers.
func Silence() Responder {
	return func([]byte) []SimReply { return nil }
}

// SimDevice describes a simulated endpoint.
type SimDevice struct {
	Respond Responder
	// MaxWrite caps the bytes accepted per write; 0 accepts everything.
	MaxWrite int
	// WriteErr is returned by every write when set.
	WriteErr error
}

type simEntry struct {
	device SimDevice
	open   int
}

// Simulator is an in-memory Driver whose devices answer requests with
// scripted replies. It is used for dry runs and tests.
type Simulator struct {
	mu      sync.Mutex
	devices map[string]*simEntry
	scheme  string
}

var _ Driver = (*Simulator)(nil)

// NewSimulator creates an empty simulator. Its ports are named under
// SimulatedScheme until it is registered under another scheme.
func NewSimulator() *Simulator {
	return &Simulator{devices: make(map[string]*simEntry), scheme: SimulatedScheme}
}

// bindScheme is called by RegisterDriver.
func (s *Simulator) bindScheme(scheme string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheme = scheme
}

func (s *Simulator) identifier(name string) string {
	return s.scheme + "://" + name
}

// Attach adds or replaces a device answering with r.
func (s *Simulator) Attach(name string, r Responder) {
	s.AttachDevice(name, SimDevice{Respond: r})
}

// AttachDevice adds or replaces a device.
func (s *Simulator) AttachDevice(name string, d SimDevice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.Respond == nil {
		d.Respond = Silence()
	}
	if e, ok := s.devices[name]; ok {
		e.device = d
		return
	}
	s.devices[name] = &simEntry{device: d}
}

// Detach removes a device. Ports already open keep working until closed.
func (s *Simulator) Detach(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.devices, name)
}

// List returns the attached device names in sorted order.
func (s *Simulator) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.devices))
	for name := range s.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Open opens an attached device exclusively.
func (s *Simulator) Open(name string, config Config) (Port, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, s.identifier(name))
	}
	if _, err := getBaudRate(config.BaudRate); err != nil {
		return nil, err
	}
	if config.Exclusive && e.open > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDeviceInUse, s.identifier(name))
	}
	e.open++

	return &SimulatedPort{
		sim:    s,
		entry:  e,
		name:   s.identifier(name),
		config: config,
		device: e.device,
	}, nil
}

func (s *Simulator) release(e *simEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.open--
}

// SimulatedPort is a Port opened from a Simulator. Besides the Port
// methods it reports readiness itself and records traffic for inspection.
type SimulatedPort struct {
	sim    *Simulator
	entry  *simEntry
	name   string
	config Config
	device SimDevice

	mu      sync.Mutex
	pending []SimReply
	written [][]byte
	reads   int
	closed  bool
}

var (
	_ Port              = (*SimulatedPort)(nil)
	_ ReadinessNotifier = (*SimulatedPort)(nil)
)

func (p *SimulatedPort) Name() string   { return p.name }
func (p *SimulatedPort) Config() Config { return p.config }

func (p *SimulatedPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPortClosed
	}
	p.closed = true
	p.pending = nil
	p.sim.release(p.entry)
	return nil
}

// Read returns the next scripted reply, or zero bytes when none is queued.
// Replies longer than buf are delivered across several reads.
func (p *SimulatedPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrPortClosed
	}
	p.reads++

	if len(p.pending) == 0 {
		return 0, nil
	}
	head := p.pending[0]
	if head.Silent {
		p.pending = p.pending[1:]
		return 0, nil
	}
	n := copy(buf, head.Data)
	if n < len(head.Data) {
		p.pending[0].Data = head.Data[n:]
		return n, nil
	}
	p.pending = p.pending[1:]
	return n, head.Err
}

// Write records data and queues the device's replies.
func (p *SimulatedPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrPortClosed
	}
	if p.device.WriteErr != nil {
		return 0, p.device.WriteErr
	}

	n := len(data)
	if p.device.MaxWrite > 0 && n > p.device.MaxWrite {
		n = p.device.MaxWrite
	}
	p.written = append(p.written, append([]byte(nil), data[:n]...))
	if n == len(data) {
		p.pending = append(p.pending, p.device.Respond(data)...)
	}
	return n, nil
}

func (p *SimulatedPort) WriteContext(ctx context.Context, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return p.Write(data)
}

// WaitReadable reports Ready when a reply is queued. An empty queue or a
// silent reply waits out timeout and reports TimedOut.
func (p *SimulatedPort) WaitReadable(ctx context.Context, timeout time.Duration) (Readiness, error) {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return Ready, nil
	case len(p.pending) > 0 && !p.pending[0].Silent:
		p.mu.Unlock()
		return Ready, nil
	case len(p.pending) > 0:
		p.pending = p.pending[1:]
	}
	p.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return TimedOut, ctx.Err()
	case <-timer.C:
		return TimedOut, nil
	}
}

func (p *SimulatedPort) Drain() error       { return p.checkOpen() }
func (p *SimulatedPort) FlushOutput() error { return p.checkOpen() }

// FlushInput drops queued replies.
func (p *SimulatedPort) FlushInput() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPortClosed
	}
	p.pending = nil
	return nil
}

func (p *SimulatedPort) checkOpen() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPortClosed
	}
	return nil
}

// Written returns a copy of every payload written so far.
func (p *SimulatedPort) Written() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.written))
	copy(out, p.written)
	return out
}

// Reads returns the number of read calls made on the port.
func (p *SimulatedPort) Reads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}
