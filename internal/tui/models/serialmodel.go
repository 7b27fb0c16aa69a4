package models

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	serial "github.com/allbin/go-serial-exchange"
)

// InputMode represents the current input mode (vim-like)
type InputMode int

const (
	InputModeNormal InputMode = iota
	InputModeInsert
)

func (m InputMode) String() string {
	switch m {
	case InputModeNormal:
		return "NORMAL"
	case InputModeInsert:
		return "INSERT"
	default:
		return "NORMAL"
	}
}

// ConnectionStatusMsg reports the result of opening the port.
type ConnectionStatusMsg struct {
	Port  serial.Port
	Error error
}

// ExchangeDoneMsg reports a finished exchange or send for history row Index.
type ExchangeDoneMsg struct {
	Index    int
	Response *serial.Response
	Error    error
}

// SerialModel is the connection state behind the console: one port, the
// exchanger driving it and at most one exchange in flight.
type SerialModel struct {
	portPath  string
	opts      []serial.Option
	exchanger *serial.Exchanger

	mu        sync.RWMutex
	port      serial.Port
	connected bool
	err       error
	ready     bool
	inputMode InputMode
	busy      bool
	inflight  context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
}

func NewSerialModel(portPath string, ex *serial.Exchanger, opts ...serial.Option) *SerialModel {
	ctx, cancel := context.WithCancel(context.Background())
	return &SerialModel{
		portPath:  portPath,
		opts:      opts,
		exchanger: ex,
		inputMode: InputModeNormal,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (m *SerialModel) GetPortPath() string {
	return m.portPath
}

func (m *SerialModel) Exchanger() *serial.Exchanger {
	return m.exchanger
}

// Connect opens the port in the background.
func (m *SerialModel) Connect() tea.Cmd {
	return func() tea.Msg {
		port, err := serial.Open(m.portPath, m.opts...)
		return ConnectionStatusMsg{Port: port, Error: err}
	}
}

// HandleConnection stores the outcome of Connect.
func (m *SerialModel) HandleConnection(msg ConnectionStatusMsg) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = msg.Error
	m.connected = msg.Error == nil && msg.Port != nil
	if m.connected {
		m.port = msg.Port
	}
}

func (m *SerialModel) GetPort() serial.Port {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.port
}

func (m *SerialModel) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *SerialModel) GetError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

func (m *SerialModel) IsReady() bool {
	return m.ready
}

func (m *SerialModel) SetReady(ready bool) {
	m.ready = ready
}

func (m *SerialModel) GetInputMode() InputMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inputMode
}

func (m *SerialModel) SetInputMode(mode InputMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputMode = mode
}

func (m *SerialModel) IsInInsertMode() bool {
	return m.GetInputMode() == InputModeInsert
}

// IsBusy reports whether an exchange is in flight.
func (m *SerialModel) IsBusy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.busy
}

// Exchange starts an exchange of payload and reports it as an
// ExchangeDoneMsg for history row index. It returns nil when not connected
// or when another exchange is in flight, since a port is not reentrant.
func (m *SerialModel) Exchange(index int, payload []byte, writeOnly bool) tea.Cmd {
	ctx, ok := m.begin()
	if !ok {
		return nil
	}
	port := m.GetPort()
	return func() tea.Msg {
		defer m.finish()
		if writeOnly {
			err := m.exchanger.Send(ctx, port, payload)
			return ExchangeDoneMsg{Index: index, Error: err}
		}
		resp, err := m.exchanger.Exchange(ctx, port, payload)
		return ExchangeDoneMsg{Index: index, Response: resp, Error: err}
	}
}

func (m *SerialModel) begin() (context.Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected || m.busy {
		return nil, false
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.busy = true
	m.inflight = cancel
	return ctx, true
}

func (m *SerialModel) finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight != nil {
		m.inflight()
		m.inflight = nil
	}
	m.busy = false
}

// CancelExchange cancels the exchange in flight, if any.
func (m *SerialModel) CancelExchange() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.inflight != nil {
		m.inflight()
	}
}

// Cleanup cancels any exchange and closes the port.
func (m *SerialModel) Cleanup() {
	if m.cancel != nil {
		m.cancel()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.port != nil {
		m.port.Close()
		m.port = nil
	}
	m.connected = false
}
