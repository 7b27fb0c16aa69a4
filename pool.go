package serial

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// ErrPoolClosed is returned by a Pool after Close.
var ErrPoolClosed = errors.New("port pool is closed")

// Pool keeps recently used ports open, keyed by identifier. Use of one port
// is serialized; different ports may be used concurrently. When the pool is
// full the least recently used port is closed once its current user is done
// with it; a caller asking for it again before then gets it back.
type Pool struct {
	exchanger *Exchanger
	opts      []Option
	log       *zap.Logger

	mu       sync.Mutex
	cache    *lru.Cache[string, *pooledPort]
	evicted  []*pooledPort
	retiring map[string]*pooledPort
	closed   bool
}

type pooledPort struct {
	id     string
	sem    chan struct{}
	port   Port
	broken atomic.Bool
	// retired is guarded by Pool.mu.
	retired bool
}

// NewPool creates a pool holding at most size open ports, opened with opts
// and exchanged through ex. A nil ex uses the default exchange settings.
func NewPool(size int, ex *Exchanger, opts ...Option) (*Pool, error) {
	if ex == nil {
		ex = defaultExchanger
	}
	p := &Pool{
		exchanger: ex,
		opts:      opts,
		log:       ex.cfg.Logger.Named("pool"),
		retiring:  make(map[string]*pooledPort),
	}
	cache, err := lru.NewWithEvict(size, p.onEvict)
	if err != nil {
		return nil, fmt.Errorf("%w: pool size %d", ErrInvalidConfig, size)
	}
	p.cache = cache
	return p, nil
}

// onEvict runs with p.mu held; ports are closed after it is released.
// Until then the port stays in retiring so get can reclaim it.
func (p *Pool) onEvict(id string, pp *pooledPort) {
	pp.retired = true
	p.retiring[id] = pp
	p.evicted = append(p.evicted, pp)
}

// takeEvicted returns the ports evicted so far. Caller holds p.mu.
func (p *Pool) takeEvicted() []*pooledPort {
	ev := p.evicted
	p.evicted = nil
	return ev
}

func (p *Pool) closePorts(ports []*pooledPort) error {
	var err error
	for _, pp := range ports {
		if cerr := p.retire(pp); cerr != nil {
			p.log.Debug("close evicted port", zap.String("device", pp.port.Name()), zap.Error(cerr))
			err = multierr.Append(err, cerr)
		}
	}
	return err
}

// get returns the pooled port for id, opening it when needed.
func (p *Pool) get(id string) (*pooledPort, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if pp, ok := p.cache.Get(id); ok {
		p.mu.Unlock()
		return pp, nil
	}
	if pp, ok := p.retiring[id]; ok && !pp.broken.Load() {
		// evicted but not closed yet, most likely still in use
		delete(p.retiring, id)
		pp.retired = false
		p.cache.Add(id, pp)
		ev := p.takeEvicted()
		p.mu.Unlock()

		p.log.Debug("evicted port reclaimed", zap.String("device", id))
		p.closePorts(ev)
		return pp, nil
	}

	port, err := Open(id, p.opts...)
	if err != nil {
		p.mu.Unlock()
		p.exchanger.cfg.Metrics.ObserveOpenFailure(err)
		return nil, err
	}
	pp := &pooledPort{id: id, sem: make(chan struct{}, 1), port: port}
	p.cache.Add(id, pp)
	ev := p.takeEvicted()
	p.mu.Unlock()

	p.log.Debug("port opened", zap.String("device", id), zap.Int("evicted", len(ev)))
	p.closePorts(ev)
	return pp, nil
}

// drop removes pp from the pool if it is still the entry for id.
func (p *Pool) drop(id string, pp *pooledPort) {
	p.mu.Lock()
	if cur, ok := p.cache.Peek(id); ok && cur == pp {
		p.cache.Remove(id)
	}
	ev := p.takeEvicted()
	p.mu.Unlock()
	p.closePorts(ev)
}

// Do runs fn with exclusive use of the port for id. A port that fails
// with ErrPortClosed or EBADF is dropped so the next call reopens it.
func (p *Pool) Do(ctx context.Context, id string, fn func(Port) error) error {
	for {
		pp, err := p.get(id)
		if err != nil {
			return err
		}

		select {
		case pp.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		if pp.broken.Load() {
			<-pp.sem
			p.drop(id, pp)
			continue
		}

		err = fn(pp.port)
		broken := err != nil && isFatalReadError(err)
		if broken {
			pp.broken.Store(true)
		}
		<-pp.sem

		if broken {
			p.log.Info("dropping failed port", zap.String("device", id), zap.Error(err))
			p.drop(id, pp)
		}
		return err
	}
}

// Exchange performs one exchange on the pooled port for id. The response is
// nil only when the port could not be opened.
func (p *Pool) Exchange(ctx context.Context, id string, payload []byte) (*Response, error) {
	var resp *Response
	err := p.Do(ctx, id, func(port Port) error {
		var err error
		resp, err = p.exchanger.Exchange(ctx, port, payload)
		return err
	})
	return resp, err
}

// Send writes payload to the pooled port for id without reading.
func (p *Pool) Send(ctx context.Context, id string, payload []byte) error {
	return p.Do(ctx, id, func(port Port) error {
		return p.exchanger.Send(ctx, port, payload)
	})
}

// Len returns the number of open ports.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache.Len()
}

// Close closes every pooled port, waiting for ports in use.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.closed = true
	p.cache.Purge()
	ev := p.takeEvicted()
	p.mu.Unlock()
	return p.closePorts(ev)
}

// retire closes an evicted port once its current user releases it, unless
// get reclaimed it in the meantime.
func (p *Pool) retire(pp *pooledPort) error {
	pp.sem <- struct{}{}
	defer func() { <-pp.sem }()

	p.mu.Lock()
	if !pp.retired {
		p.mu.Unlock()
		return nil
	}
	if cur, ok := p.retiring[pp.id]; ok && cur == pp {
		delete(p.retiring, pp.id)
	}
	p.mu.Unlock()

	if pp.broken.Swap(true) {
		// already failed; closing again only reports ErrPortClosed
		err := pp.port.Close()
		if errors.Is(err, ErrPortClosed) || errors.Is(err, unix.EBADF) {
			return nil
		}
		return err
	}
	return pp.port.Close()
}
