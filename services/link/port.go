package link

import (
	"sync/atomic"

	"hubdrive-go/x/shmring"
)

const (
	DefaultRingSize = 1024
	DefaultOutQueue = 32
)

// Port is the control loop's view of a text link. Bytes arrive from exactly
// one reader goroutine through an SPSC ring; lines leave through a bounded
// queue drained by the writer. Neither direction blocks the loop.
type Port struct {
	name string
	rx   *shmring.Ring
	asm  *Assembler
	buf  []byte

	out     chan string
	dropped atomic.Uint32
}

func NewPort(name string, ringSize, outQueue, maxLine int) *Port {
	if ringSize <= 0 {
		ringSize = DefaultRingSize
	}
	if outQueue <= 0 {
		outQueue = DefaultOutQueue
	}
	return &Port{
		name: name,
		rx:   shmring.New(ringSize),
		asm:  NewAssembler(maxLine),
		buf:  make([]byte, 128),
		out:  make(chan string, outQueue),
	}
}

func (p *Port) Name() string { return p.name }

// Inbound is the producer side, for the single reader goroutine only.
func (p *Port) Inbound(b []byte) int { return p.rx.WriteFrom(b) }

// Restart marks a session boundary in the inbound stream so a line cut off by
// the previous session is discarded. Producer side, called before a new
// reader starts.
func (p *Port) Restart() { p.rx.WriteFrom([]byte{CancelLine}) }

// Readable signals when the ring goes non-empty.
func (p *Port) Readable() <-chan struct{} { return p.rx.Readable() }

// Drain moves every buffered byte through the line assembler and calls fn per
// complete line. Control loop only.
func (p *Port) Drain(fn func(line string)) int {
	lines := 0
	emit := func(l string) { lines++; fn(l) }
	for {
		n := p.rx.ReadInto(p.buf)
		if n == 0 {
			return lines
		}
		p.asm.Feed(p.buf[:n], emit)
	}
}

// WriteLine queues a line for the writer. When the queue is full the line is
// dropped and counted.
func (p *Port) WriteLine(line string) {
	select {
	case p.out <- line:
	default:
		p.dropped.Add(1)
	}
}

// Outbound is the consumer side of the write queue.
func (p *Port) Outbound() <-chan string { return p.out }

type Stats struct {
	RxDropped uint32
	TxDropped uint32
	Truncated uint32
}

func (p *Port) Stats() Stats {
	return Stats{RxDropped: p.rx.Dropped(), TxDropped: p.dropped.Load(), Truncated: p.asm.Truncated()}
}
