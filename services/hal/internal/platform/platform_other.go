//go:build !linux && !rp2040 && !rp2350

package platform

import (
	"hubdrive-go/errcode"
	"hubdrive-go/services/hal/internal/halcore"
)

const Name = "none"

// Hosts without GPIO only run the simulated board.

func Pins(string) (halcore.PinFactory, error) {
	return nil, errcode.New(errcode.Unsupported, "gpio.open", "no GPIO on this host")
}

func NativePWM() (halcore.PWMFactory, error) {
	return nil, errcode.New(errcode.Unsupported, "pwm.native", "no PWM on this host")
}

func OpenI2C(string) (halcore.I2C, error) {
	return nil, errcode.New(errcode.Unsupported, "i2c.open", "no I2C on this host")
}
