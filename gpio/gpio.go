// Package gpio defines the pin-level controller interface consumed by the
// peripheral drivers in this module. A board implementation backs it with
// real pad and alternate-function registers; tests back it with an inject
// fake.
package gpio

// Pin identifies one GPIO line by its board-global number.
type Pin uint32

// NoPin marks an absent pin in a peripheral descriptor, e.g. a SPI bus wired
// without a MISO line.
const NoPin Pin = 0xffffffff

// Mode configures the basic direction of a pin.
type Mode uint8

const (
	// Input configures a pin as a floating input.
	Input Mode = iota
	// Output configures a pin as a push-pull output.
	Output
	// InputPullUp configures a pin as an input with its pull-up enabled.
	InputPullUp
	// InputPullDown configures a pin as an input with its pull-down enabled.
	InputPullDown
	// OutputOpenDrain configures a pin as an open-drain output.
	OutputOpenDrain
)

// AltFunc selects one of a pin's alternate functions, routing it to an
// on-chip peripheral instead of the GPIO output driver.
type AltFunc uint8

// Controller is the board's GPIO block.
//
// Init and InitAltFunc are setup-time operations and may fail; Set and Clear
// are single register pokes on the transfer hot path and cannot.
type Controller interface {
	// Valid reports whether p names a line this board actually has.
	Valid(p Pin) bool

	// Init configures the basic mode of a pin.
	Init(p Pin, m Mode) error

	// InitAltFunc routes a pin to the given alternate function. The pin must
	// already have been initialized with Init.
	InitAltFunc(p Pin, af AltFunc) error

	// Set drives an output pin to logic high.
	Set(p Pin)

	// Clear drives an output pin to logic low.
	Clear(p Pin)
}
