//go:build !rp2040 && !rp2350

package link

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"

	"hubdrive-go/errcode"
)

func init() {
	RegisterTransport("serial", newSerialTransport)
	RegisterTransport("websocket", newWebSocketTransport)
	RegisterTransport("stdio", newStdioTransport)
}

// -----------------------------------------------------------------------------
// serial
// -----------------------------------------------------------------------------

type serialTransport struct {
	device string
	mode   *serial.Mode
}

func newSerialTransport(cfg Config) (Transport, error) {
	if cfg.Device == "" {
		return nil, errcode.New(errcode.InvalidParams, "link.serial", "serial transport requires a device")
	}
	baud := cfg.Baud
	if baud <= 0 {
		baud = 115200
	}
	return &serialTransport{
		device: cfg.Device,
		mode: &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
	}, nil
}

func (t *serialTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	p, err := serial.Open(t.device, t.mode)
	if err != nil {
		return nil, &errcode.E{C: errcode.LinkDown, Op: "link.serial", Msg: "open " + t.device, Err: err}
	}
	return p, nil
}

func (t *serialTransport) String() string { return "serial:" + t.device }

// ListSerial reports the serial devices present on the host.
func ListSerial() ([]string, error) { return serial.GetPortsList() }

// -----------------------------------------------------------------------------
// websocket: one text message per line
// -----------------------------------------------------------------------------

type wsTransport struct {
	url    string
	dialer websocket.Dialer
}

func newWebSocketTransport(cfg Config) (Transport, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "link.websocket", Msg: "invalid url", Err: err}
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, errcode.New(errcode.InvalidParams, "link.websocket", "unsupported scheme '"+u.Scheme+"' (use ws:// or wss://)")
	}
	return &wsTransport{url: cfg.URL, dialer: websocket.Dialer{HandshakeTimeout: 10 * time.Second}}, nil
}

func (t *wsTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	c, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, &errcode.E{C: errcode.LinkDown, Op: "link.websocket", Msg: "dial " + t.url, Err: err}
	}
	return NewWSConn(c), nil
}

func (t *wsTransport) String() string { return "websocket:" + t.url }

// WSConn exposes a websocket as a newline-delimited byte stream.
type WSConn struct {
	conn *websocket.Conn
	buf  []byte
}

func NewWSConn(c *websocket.Conn) *WSConn { return &WSConn{conn: c} }

func (w *WSConn) Read(p []byte) (int, error) {
	for len(w.buf) == 0 {
		mt, data, err := w.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
				return 0, io.EOF
			}
			return 0, err
		}
		if mt != websocket.TextMessage {
			continue
		}
		w.buf = append(data, '\n')
	}
	n := copy(p, w.buf)
	w.buf = w.buf[n:]
	return n, nil
}

// Write sends each line of p as its own text message.
func (w *WSConn) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if err := w.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (w *WSConn) Close() error { return w.conn.Close() }

// -----------------------------------------------------------------------------
// stdio
// -----------------------------------------------------------------------------

type stdio struct {
	io.Reader
	io.Writer
}

func (stdio) Close() error { return nil }

type stdioTransport struct{ opened bool }

func newStdioTransport(Config) (Transport, error) { return &stdioTransport{}, nil }

// Open hands out the process stdio once; a second Open fails because stdin
// cannot be reopened after EOF.
func (t *stdioTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	if t.opened {
		return nil, ErrClosed
	}
	t.opened = true
	return stdio{Reader: os.Stdin, Writer: os.Stdout}, nil
}

func (t *stdioTransport) String() string { return "stdio" }
