package shmring

import (
	"sync"
	"testing"
)

func TestOrderAcrossWrap(t *testing.T) {
	r := New(64)

	const N = 2000
	src := make([]byte, N)
	for i := range src {
		src[i] = byte(i)
	}
	dst := make([]byte, 0, N)
	tmp := make([]byte, 5)

	p := src
	for len(dst) < N {
		if len(p) > 0 {
			step := 7
			if step > len(p) {
				step = len(p)
			}
			n := r.WriteFrom(p[:step])
			p = p[n:]
		}
		n := r.ReadInto(tmp)
		dst = append(dst, tmp[:n]...)
	}
	for i := range dst {
		if dst[i] != src[i] {
			t.Fatalf("byte %d = %d, want %d", i, dst[i], src[i])
		}
	}
}

func TestFullRingDropsAndCounts(t *testing.T) {
	r := New(8)
	if n := r.WriteFrom([]byte("0123456789")); n != 8 {
		t.Fatalf("WriteFrom = %d, want 8", n)
	}
	if got := r.Dropped(); got != 2 {
		t.Fatalf("Dropped = %d, want 2", got)
	}
	if r.Space() != 0 || r.Available() != 8 {
		t.Fatalf("space=%d avail=%d", r.Space(), r.Available())
	}
}

func TestReadableEdge(t *testing.T) {
	r := New(16)
	r.WriteFrom([]byte("a"))
	select {
	case <-r.Readable():
	default:
		t.Fatal("expected readable notification on empty->non-empty")
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	r := New(32)
	const N = 10000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < N; {
			if r.WriteFrom([]byte{byte(i)}) == 1 {
				i++
			}
		}
	}()
	buf := make([]byte, 8)
	next := 0
	for next < N {
		n := r.ReadInto(buf)
		for _, b := range buf[:n] {
			if b != byte(next) {
				t.Fatalf("got %d, want %d", b, byte(next))
			}
			next++
		}
	}
	wg.Wait()
}
