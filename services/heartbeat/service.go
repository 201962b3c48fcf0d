// Package heartbeat keeps a supervisory link alive from the peer side by
// sending a keep-alive frame on a fixed interval.
package heartbeat

import (
	"context"
	"time"

	"hubdrive-go/bus"
)

const (
	DefaultInterval = 500 * time.Millisecond
	DefaultFrame    = "ROS:HEARTBEAT"
)

// TopicConfig carries a time.Duration that replaces the interval.
var TopicConfig = bus.T("config", "heartbeat")

type Service struct {
	Interval time.Duration
	Frame    string
	Write    func(line string) error

	sent uint32
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection, done chan<- struct{}) {
	defer close(done)
	cfgSub := conn.Subscribe(TopicConfig)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(s.Interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if err := s.Write(s.Frame); err != nil {
				println("[heartbeat] write failed:", err.Error())
				return
			}
			s.sent++
		case msg := <-cfgSub.Channel():
			if iv, ok := msg.Payload.(time.Duration); ok && iv > 0 {
				tick.Reset(iv)
				println("[heartbeat] interval set to", iv.String())
			}
		}
	}
}

// Start sends the frame every interval until ctx is done or a write fails.
// The returned channel closes when the loop exits.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) <-chan struct{} {
	if s.Interval <= 0 {
		s.Interval = DefaultInterval
	}
	if s.Frame == "" {
		s.Frame = DefaultFrame
	}
	done := make(chan struct{})
	go s.serviceLoop(ctx, conn, done)
	return done
}

// Sent is the number of frames written; read it after the loop exits.
func (s *Service) Sent() uint32 { return s.sent }
