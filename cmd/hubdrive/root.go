//go:build !rp2040 && !rp2350

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hubdrive-go/services/link"
)

var (
	// Link flags
	portName string
	baudRate int
	wsURL    string

	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "hubdrive",
	Short: "Two-wheel hub motor controller",
	Long: `hubdrive - closed-loop speed control for two hub motors.

Commands:
  run    run the controller on this host (linux board or simulator)
  sim    run the controller against the simulated plant on stdin/stdout
  send   send commands to a controller's supervisory link
  ports  list serial ports
  config print the effective configuration

Link selection (send, and the supervisory link of run/sim):
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path`,
	Version:      "0.3.0",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
}

// linkFromFlags returns the link selected by --port or --url, if any.
func linkFromFlags() (link.Config, bool, error) {
	switch {
	case portName != "" && wsURL != "":
		return link.Config{}, false, fmt.Errorf("use either --port or --url, not both")
	case portName != "":
		return link.Config{Type: "serial", Device: portName, Baud: baudRate}, true, nil
	case wsURL != "":
		return link.Config{Type: "websocket", URL: wsURL}, true, nil
	}
	return link.Config{}, false, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
