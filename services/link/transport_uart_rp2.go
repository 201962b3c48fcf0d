//go:build rp2040 || rp2350

package link

import (
	"context"
	"io"
	"machine"

	"github.com/jangala-dev/tinygo-uartx/uartx"

	"hubdrive-go/errcode"
)

func init() { RegisterTransport("uart", newUARTTransport) }

type uartTransport struct {
	hw  *uartx.UART
	cfg uartx.UARTConfig
	id  string
}

func newUARTTransport(cfg Config) (Transport, error) {
	t := &uartTransport{cfg: uartx.UARTConfig{
		BaudRate: uint32(cfg.Baud),
		TX:       machine.Pin(cfg.TXPin),
		RX:       machine.Pin(cfg.RXPin),
	}}
	switch cfg.UART {
	case 0:
		t.hw, t.id = uartx.UART0, "uart0"
	case 1:
		t.hw, t.id = uartx.UART1, "uart1"
	default:
		return nil, errcode.New(errcode.InvalidParams, "link.uart", "uart must be 0 or 1")
	}
	return t, nil
}

func (t *uartTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	if err := t.hw.Configure(t.cfg); err != nil {
		return nil, &errcode.E{C: errcode.LinkDown, Op: "link.uart", Msg: "configure " + t.id, Err: err}
	}
	if err := t.hw.SetFormat(8, 1, uartx.ParityNone); err != nil {
		return nil, &errcode.E{C: errcode.LinkDown, Op: "link.uart", Msg: "format " + t.id, Err: err}
	}
	rctx, cancel := context.WithCancel(ctx)
	return &uartConn{hw: t.hw, ctx: rctx, cancel: cancel}, nil
}

func (t *uartTransport) String() string { return t.id }

// uartConn never reports EOF: a UART has no peer close, only silence.
type uartConn struct {
	hw     *uartx.UART
	ctx    context.Context
	cancel context.CancelFunc
}

func (c *uartConn) Read(p []byte) (int, error)  { return c.hw.RecvSomeContext(c.ctx, p) }
func (c *uartConn) Write(p []byte) (int, error) { return c.hw.Write(p) }
func (c *uartConn) Close() error                { c.cancel(); return nil }
