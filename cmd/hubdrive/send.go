//go:build !rp2040 && !rp2350

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"hubdrive-go/bus"
	"hubdrive-go/services/heartbeat"
	"hubdrive-go/services/link"
)

var (
	waitMs    int
	keepalive bool
	rawFrames bool
)

var sendCmd = &cobra.Command{
	Use:   "send <command>...",
	Short: "Send commands to a controller's supervisory link",
	Long: `Send commands as supervisory frames and print every reply line.

Commands are prefixed with ROS: unless --raw is set. With no command, lines are
read from stdin. --keepalive sends ROS:HEARTBEAT every 500 ms so the
controller's watchdog stays quiet while the session is open.

Examples:
  hubdrive send -p /dev/ttyUSB0 FORWARD SPEED:120
  hubdrive send -u ws://robot.local:8080/drive --keepalive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lc, ok, err := linkFromFlags()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("--port or --url is required")
		}
		tr, err := link.NewTransport(lc)
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
		rwc, err := tr.Open(dialCtx)
		dialCancel()
		if err != nil {
			return fmt.Errorf("open %s: %w", tr, err)
		}
		defer rwc.Close()

		w := &lineWriter{w: rwc}
		go printReplies(rwc, cmd.OutOrStdout())

		if keepalive {
			hb := &heartbeat.Service{Write: w.WriteLine}
			hb.Start(ctx, bus.NewBus(2).NewConnection("heartbeat"))
		}

		if len(args) == 0 {
			sc := bufio.NewScanner(cmd.InOrStdin())
			for sc.Scan() {
				if err := w.WriteLine(frame(sc.Text())); err != nil {
					return err
				}
			}
			if !keepalive {
				return nil
			}
			<-ctx.Done()
			return nil
		}
		for _, a := range args {
			if err := w.WriteLine(frame(a)); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
		case <-time.After(msDuration(waitMs)):
		}
		return nil
	},
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := link.ListSerial()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
		}
		for _, p := range ports {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	sendCmd.Flags().IntVarP(&waitMs, "wait", "w", 500, "Time to wait for replies after the last command (ms)")
	sendCmd.Flags().BoolVarP(&keepalive, "keepalive", "k", false, "Send heartbeat frames while connected")
	sendCmd.Flags().BoolVar(&rawFrames, "raw", false, "Send lines as typed, without the ROS: prefix")
	rootCmd.AddCommand(sendCmd, portsCmd)
}

func frame(s string) string {
	s = strings.TrimSpace(s)
	if rawFrames || s == "" || strings.HasPrefix(strings.ToUpper(s), "ROS:") {
		return s
	}
	return "ROS:" + s
}

func msDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// lineWriter serialises the command and keep-alive writers.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) WriteLine(s string) error {
	if s == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := io.WriteString(l.w, s+"\n")
	return err
}

func printReplies(r io.Reader, out io.Writer) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fmt.Fprintln(out, strings.TrimRight(sc.Text(), "\r"))
	}
}
