// Package gpio provides GPIO input reading with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads GPIO input levels.
type Reader interface {
	// Read returns the raw level of the given line offset (BCM numbering on a
	// Raspberry Pi): true = high. Inversion for active-low wiring is the
	// caller's business.
	Read(pin int) (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Bias selects the internal pull resistor for an input line.
type Bias string

const (
	BiasPullDown Bias = "pull-down"
	BiasPullUp   Bias = "pull-up"
	BiasDisabled Bias = "disabled"
)

// Line describes one input line to request.
type Line struct {
	Pin  int
	Bias Bias
}

// DefaultChip is the GPIO chip holding the Raspberry Pi header pins.
const DefaultChip = "gpiochip0"
