package link

import (
	"context"
	"errors"
	"io"
	"net"
	"reflect"
	"testing"
	"time"

	"hubdrive-go/bus"
	"hubdrive-go/types"
)

func TestAssemblerSplitsLines(t *testing.T) {
	a := NewAssembler(8)
	var got []string
	emit := func(l string) { got = append(got, l) }
	a.Feed([]byte("F\r\nBOTH:"), emit)
	a.Feed([]byte("200\n\n\r\nSTATUS"), emit)
	a.Feed([]byte("\n"), emit)
	want := []string{"F", "BOTH:200", "STATUS"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAssemblerCancelDropsPartialLine(t *testing.T) {
	a := NewAssembler(16)
	var got []string
	emit := func(l string) { got = append(got, l) }
	a.Feed([]byte("PIDL:1,2"), emit)
	a.Feed([]byte{CancelLine}, emit)
	a.Feed([]byte("STATUS\n"), emit)
	if !reflect.DeepEqual(got, []string{"STATUS"}) {
		t.Fatalf("got %q", got)
	}
}

func TestPortRestartDiscardsCutOffLine(t *testing.T) {
	p := NewPort("ros", 64, 2, 32)
	p.Restart()
	p.Inbound([]byte("F\nML:1"))
	p.Restart()
	p.Inbound([]byte("HEARTBEAT\n"))
	var got []string
	p.Drain(func(l string) { got = append(got, l) })
	if !reflect.DeepEqual(got, []string{"F", "HEARTBEAT"}) {
		t.Fatalf("got %q", got)
	}
}

func TestAssemblerTruncatesLongLines(t *testing.T) {
	a := NewAssembler(4)
	var got []string
	a.Feed([]byte("ABCDEFGH\nOK\n"), func(l string) { got = append(got, l) })
	if !reflect.DeepEqual(got, []string{"ABCD", "OK"}) {
		t.Fatalf("got %q", got)
	}
	if a.Truncated() != 1 {
		t.Fatalf("truncated %d", a.Truncated())
	}
}

func TestPortDrainAndBoundedWrites(t *testing.T) {
	p := NewPort("console", 64, 2, 32)
	p.Inbound([]byte("S\nML:1"))
	p.Inbound([]byte("0\n"))
	var got []string
	if n := p.Drain(func(l string) { got = append(got, l) }); n != 2 {
		t.Fatalf("drained %d lines", n)
	}
	if !reflect.DeepEqual(got, []string{"S", "ML:10"}) {
		t.Fatalf("got %q", got)
	}

	p.WriteLine("a")
	p.WriteLine("b")
	p.WriteLine("c") // queue full, dropped
	if st := p.Stats(); st.TxDropped != 1 {
		t.Fatalf("stats %+v", st)
	}
	if l := <-p.Outbound(); l != "a" {
		t.Fatalf("first out %q", l)
	}
}

func TestBackoffSeq(t *testing.T) {
	next := backoffSeq(100*time.Millisecond, 350*time.Millisecond)
	var got []time.Duration
	for i := 0; i < 5; i++ {
		got = append(got, next())
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 350 * time.Millisecond, 350 * time.Millisecond, 350 * time.Millisecond}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}
}

func TestUnknownTransport(t *testing.T) {
	if _, err := NewTransport(Config{Type: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error")
	}
}

func nextState(t *testing.T, sub *bus.Subscription) types.LinkState {
	t.Helper()
	select {
	case m := <-sub.Channel():
		st, ok := m.Payload.(types.LinkState)
		if !ok {
			t.Fatalf("payload %T", m.Payload)
		}
		return st
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for link state")
	}
	return types.LinkState{}
}

func TestSupervisorPumpsLinesAndReconnects(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("test")
	states := conn.Subscribe(StateTopic("ros"))

	remotes := make(chan net.Conn, 4)
	tr := Dial{Name: "pipe", Fn: func(ctx context.Context) (io.ReadWriteCloser, error) {
		local, remote := net.Pipe()
		remotes <- remote
		return local, nil
	}}
	port := NewPort("ros", 256, 8, 64)
	sup := NewSupervisor(port, tr, conn, Config{BackoffMin: 10 * time.Millisecond, BackoffMax: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { sup.Run(ctx); close(done) }()

	if st := nextState(t, states); st.Level != types.LinkIdle {
		t.Fatalf("first state %+v", st)
	}
	if st := nextState(t, states); st.Level != types.LinkUp || st.Status != "link_established" {
		t.Fatalf("state %+v", st)
	}
	remote := <-remotes

	// Inbound.
	go func() { _, _ = remote.Write([]byte("HEARTBEAT\n")) }()
	var got []string
	deadline := time.After(time.Second)
	for len(got) == 0 {
		select {
		case <-port.Readable():
			port.Drain(func(l string) { got = append(got, l) })
		case <-deadline:
			t.Fatal("no inbound line")
		}
	}
	if got[0] != "HEARTBEAT" {
		t.Fatalf("inbound %q", got)
	}

	// Outbound.
	port.WriteLine("ACK:HEARTBEAT")
	buf := make([]byte, 64)
	_ = remote.SetReadDeadline(time.Now().Add(time.Second))
	n, err := remote.Read(buf)
	if err != nil || string(buf[:n]) != "ACK:HEARTBEAT\n" {
		t.Fatalf("outbound %q %v", buf[:n], err)
	}

	// Peer goes away mid-line; supervisor degrades and redials.
	if _, err := remote.Write([]byte("ML:12")); err != nil {
		t.Fatal(err)
	}
	_ = remote.Close()
	if st := nextState(t, states); st.Level != types.LinkDegraded || st.Status != "link_lost_retrying" {
		t.Fatalf("state %+v", st)
	}
	if st := nextState(t, states); st.Level != types.LinkUp {
		t.Fatalf("state %+v", st)
	}

	// The cut-off line does not leak into the next session.
	remote = <-remotes
	go func() { _, _ = remote.Write([]byte("STATUS\n")) }()
	got = got[:0]
	deadline = time.After(time.Second)
	for len(got) == 0 {
		select {
		case <-port.Readable():
			port.Drain(func(l string) { got = append(got, l) })
		case <-deadline:
			t.Fatal("no inbound line after reconnect")
		}
	}
	if !reflect.DeepEqual(got, []string{"STATUS"}) {
		t.Fatalf("after reconnect %q", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestSupervisorDialFailureDegrades(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("test")
	states := conn.Subscribe(StateTopic("ros"))
	tr := Dial{Name: "broken", Fn: func(context.Context) (io.ReadWriteCloser, error) {
		return nil, errors.New("no device")
	}}
	sup := NewSupervisor(NewPort("ros", 64, 4, 32), tr, conn, Config{BackoffMin: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	nextState(t, states) // idle
	st := nextState(t, states)
	if st.Level != types.LinkDegraded || st.Status != "dial_failed_retrying" || st.Error == "" {
		t.Fatalf("state %+v", st)
	}
}
