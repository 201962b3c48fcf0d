package main

import (
	"context"
	"time"

	"hubdrive-go/bus"
	"hubdrive-go/services/config"
	"hubdrive-go/services/controller"
	"hubdrive-go/types"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("[main] boot, board", defaultBoard)

	cfg, err := config.ForBoard(defaultBoard)
	if err != nil {
		println("[main] config:", err.Error())
		return
	}
	b := bus.NewBus(8)
	go monitor(b.NewConnection("monitor"))

	for {
		c, err := controller.New(cfg, controller.Options{Bus: b})
		if err != nil {
			println("[main] controller:", err.Error())
			time.Sleep(5 * time.Second)
			continue
		}
		_ = c.Run(context.Background())
	}
}

// monitor prints link, board and fault events on the debug output.
func monitor(conn *bus.Connection) {
	links := conn.Subscribe(bus.T("link", "+", "state"))
	board := conn.Subscribe(bus.T("hal", "state"))
	faults := conn.Subscribe(controller.TopicFault)
	for {
		select {
		case m := <-links.Channel():
			if st, ok := m.Payload.(types.LinkState); ok {
				name, _ := m.Topic[1].(string)
				println("[main] link", name, string(st.Level), st.Status)
			}
		case m := <-board.Channel():
			if st, ok := m.Payload.(types.HALState); ok {
				println("[main] board", st.Board, string(st.Level), st.Status)
			}
		case m := <-faults.Channel():
			if f, ok := m.Payload.(types.Fault); ok {
				println("[main] fault", f.Code, f.Reason)
			}
		}
	}
}
