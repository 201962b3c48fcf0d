//go:build !rp2040 && !rp2350

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"hubdrive-go/services/config"
	"hubdrive-go/services/controller"
	"hubdrive-go/services/link"
	"hubdrive-go/x/strx"
)

var (
	boardName   string
	noSuper     bool
	streamEvery int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the controller",
	Long: `Run the controller on this host.

Configuration is built from the board defaults, then --config, then
HUBDRIVE_* environment variables, then flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if boardName != "" && boardName != cfg.Board {
			base, err := config.ForBoard(boardName)
			if err != nil {
				return err
			}
			cfg.Board = base.Board
			cfg.Left, cfg.Right, cfg.PWM, cfg.Indicator = base.Left, base.Right, base.PWM, base.Indicator
		}
		return runController(cfg)
	},
}

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run the controller against the simulated plant",
	Long: `Run the controller against the simulated plant with the console on
stdin/stdout. Type HELP for commands; ROS:<cmd> sends a supervisory frame.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		sim := config.Default()
		cfg.Board = sim.Board
		cfg.Left.HallPin, cfg.Right.HallPin = -1, -1
		cfg.Left.Actuator, cfg.Right.Actuator = sim.Left.Actuator, sim.Right.Actuator
		cfg.PWM, cfg.Indicator.Pin = sim.PWM, sim.Indicator.Pin
		cfg.Console = link.Config{Type: "stdio"}
		if _, ok, _ := linkFromFlags(); !ok {
			noSuper = true
		}
		return runController(cfg)
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, simCmd} {
		c.Flags().BoolVar(&noSuper, "no-super", false, "Run without a supervisory link")
		c.Flags().IntVar(&streamEvery, "stream", 0, "Status stream period on the supervisory link in ms (0 = off)")
	}
	runCmd.Flags().StringVar(&boardName, "board", "", "Board preset (sim, pico, linux)")
	rootCmd.AddCommand(runCmd, simCmd)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	lc, ok, err := linkFromFlags()
	if err != nil {
		return cfg, err
	}
	if ok {
		lc.BackoffMin, lc.BackoffMax = cfg.Supervisory.BackoffMin, cfg.Supervisory.BackoffMax
		cfg.Supervisory = lc
	}
	if streamEvery > 0 {
		cfg.Drive.StreamPeriod = msDuration(streamEvery)
	}
	return cfg, nil
}

// idle is a supervisory link that never connects.
var idle = link.Dial{Name: "none", Fn: func(ctx context.Context) (io.ReadWriteCloser, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}}

func runController(cfg config.Config) error {
	opt := controller.Options{}
	if noSuper {
		opt.Supervisory = idle
	}
	c, err := controller.New(cfg, opt)
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	ctx, cancel := signalContext()
	defer cancel()

	log.Printf("hubdrive: board=%s console=%s supervisory=%s", c.Board.Name, cfg.Console.Type, supervisoryName(cfg, noSuper))
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func supervisoryName(cfg config.Config, none bool) string {
	if none {
		return "none"
	}
	return strx.Coalesce(cfg.Supervisory.URL, cfg.Supervisory.Type+":"+cfg.Supervisory.Device)
}
