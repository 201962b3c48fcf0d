// Package link carries text lines between the control loop and its two
// transports: the local console and the supervisory link.
package link

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"hubdrive-go/bus"
	"hubdrive-go/errcode"
	"hubdrive-go/types"
	"hubdrive-go/x/timex"
)

// -----------------------------------------------------------------------------
// Transport registry
// -----------------------------------------------------------------------------

// Config selects and parameterises a transport.
type Config struct {
	Type   string `yaml:"type" env:"TYPE"`     // "stdio", "serial", "websocket", "uart", ...
	Device string `yaml:"device" env:"DEVICE"` // serial device path
	Baud   int    `yaml:"baud" env:"BAUD"`
	URL    string `yaml:"url" env:"URL"` // websocket endpoint
	UART   int    `yaml:"uart" env:"UART"`
	TXPin  int    `yaml:"tx_pin" env:"TX_PIN"`
	RXPin  int    `yaml:"rx_pin" env:"RX_PIN"`

	BackoffMin time.Duration `yaml:"backoff_min" env:"BACKOFF_MIN"`
	BackoffMax time.Duration `yaml:"backoff_max" env:"BACKOFF_MAX"`
}

// Transport is a pluggable link dialler.
type Transport interface {
	Open(ctx context.Context) (io.ReadWriteCloser, error)
	String() string
}

type Factory func(Config) (Transport, error)

var (
	regMu    sync.RWMutex
	registry = map[string]Factory{}
)

// RegisterTransport makes a transport type available to NewTransport.
func RegisterTransport(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

func NewTransport(cfg Config) (Transport, error) {
	regMu.RLock()
	f, ok := registry[cfg.Type]
	regMu.RUnlock()
	if !ok {
		return nil, errcode.New(errcode.Unsupported, "link.transport", "unknown transport type '"+cfg.Type+"'")
	}
	return f(cfg)
}

// Dial adapts a function to a Transport.
type Dial struct {
	Name string
	Fn   func(ctx context.Context) (io.ReadWriteCloser, error)
}

func (d Dial) Open(ctx context.Context) (io.ReadWriteCloser, error) { return d.Fn(ctx) }
func (d Dial) String() string                                       { return d.Name }

// -----------------------------------------------------------------------------
// Supervisor
// -----------------------------------------------------------------------------

// Supervisor keeps a transport connected to a Port, redialling with
// exponential backoff and publishing its state retained on link/<name>/state.
type Supervisor struct {
	port  *Port
	tr    Transport
	conn  *bus.Connection
	topic bus.Topic

	backoffMin, backoffMax time.Duration
}

func StateTopic(name string) bus.Topic { return bus.T("link", name, "state") }

func NewSupervisor(port *Port, tr Transport, conn *bus.Connection, cfg Config) *Supervisor {
	return &Supervisor{
		port:       port,
		tr:         tr,
		conn:       conn,
		topic:      StateTopic(port.Name()),
		backoffMin: cfg.BackoffMin,
		backoffMax: cfg.BackoffMax,
	}
}

// ErrClosed is returned by a link whose peer closed cleanly.
var ErrClosed = errors.New("link closed")

// Run supervises the link until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	s.publishState(types.LinkIdle, "dialing", nil)
	backoff := backoffSeq(s.backoffMin, s.backoffMax)
	for {
		if ctx.Err() != nil {
			s.publishState(types.LinkDown, "stopped", nil)
			return
		}
		rwc, err := s.tr.Open(ctx)
		if err != nil {
			delay := backoff()
			s.publishState(types.LinkDegraded, "dial_failed_retrying", err)
			println("[link]", s.port.Name(), "dial", s.tr.String(), "failed:", err.Error())
			if !sleep(ctx, delay) {
				s.publishState(types.LinkDown, "stopped", nil)
				return
			}
			continue
		}

		backoff = backoffSeq(s.backoffMin, s.backoffMax)
		s.publishState(types.LinkUp, "link_established", nil)
		println("[link]", s.port.Name(), "up via", s.tr.String())

		err = s.handleLink(ctx, rwc)
		_ = rwc.Close()
		if ctx.Err() != nil {
			s.publishState(types.LinkDown, "stopped", nil)
			return
		}
		delay := backoff()
		s.publishState(types.LinkDegraded, "link_lost_retrying", err)
		println("[link]", s.port.Name(), "lost")
		if !sleep(ctx, delay) {
			s.publishState(types.LinkDown, "stopped", nil)
			return
		}
	}
}

// handleLink pumps bytes in and lines out until either side fails. The reader
// goroutine has exited by the time it returns, so the ring keeps one producer.
func (s *Supervisor) handleLink(ctx context.Context, rwc io.ReadWriteCloser) error {
	lctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.port.Restart()
	rdDone := make(chan error, 1)
	go func() {
		buf := make([]byte, 64)
		for {
			n, err := rwc.Read(buf)
			if n > 0 {
				s.port.Inbound(buf[:n])
			}
			if err != nil {
				if err == io.EOF {
					err = ErrClosed
				}
				rdDone <- err
				return
			}
		}
	}()

	var werr error
loop:
	for {
		select {
		case <-lctx.Done():
			break loop
		case err := <-rdDone:
			return err
		case line := <-s.port.Outbound():
			if _, err := io.WriteString(rwc, line+"\n"); err != nil {
				werr = err
				break loop
			}
		}
	}
	// Unblock the reader. On shutdown no new reader follows, so don't wait.
	_ = rwc.Close()
	if ctx.Err() != nil {
		return nil
	}
	if err := <-rdDone; werr == nil {
		werr = err
	}
	return werr
}

func (s *Supervisor) publishState(level types.Link, status string, err error) {
	if s.conn == nil {
		return
	}
	st := types.LinkState{Level: level, Status: status, TSms: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(s.topic, st, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 250 * time.Millisecond
	}
	if max < min {
		max = 5 * time.Second
		if max < min {
			max = min
		}
	}
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
