package spi

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/physic"

	"go.viam.com/mcu/clocks"
	"go.viam.com/mcu/gpio"
)

// Contract violations terminate the program; they are programming errors,
// not runtime conditions.
const (
	badBusIndex   = "spi: bus index out of range"
	badBuffers    = "spi: transfer needs an output or an input buffer"
	badBufferLens = "spi: output and input buffers differ in length"
	badClock      = "spi: requested clock must be positive"
)

// Driver multiplexes a table of SPI buses. Construct exactly one per bus
// table with NewDriver and share it by reference; all methods are safe for
// concurrent use.
type Driver struct {
	cfgs   []BusConfig
	states []busState
	gpio   gpio.Controller
	power  clocks.Power
	logger golog.Logger

	// waitTimeout bounds hardware status waits when non-zero. Zero keeps the
	// reference behavior: wait forever.
	waitTimeout time.Duration
	clk         clock.Clock
}

// busState is the per-bus runtime state. The lock serializes the whole
// acquire/transfer/release window; the clock cache and the DMA scratch cell
// are only touched by the lock holder.
type busState struct {
	mu            sync.Mutex
	cachedClock   physic.Frequency
	cachedDivider uint8
	scratch       [1]byte
}

// Option configures a Driver beyond its required collaborators.
type Option func(*Driver)

// WithWaitTimeout bounds every hardware status wait to the given duration,
// measured on clk, and panics with a stuck-peripheral diagnosis when it
// expires. This is a deliberate extension over the reference behavior of
// waiting forever; use clock.New() on hardware and a mock in tests.
func WithWaitTimeout(timeout time.Duration, clk clock.Clock) Option {
	return func(d *Driver) {
		d.waitTimeout = timeout
		d.clk = clk
	}
}

// NewDriver builds the driver for a bus table. The gpio controller is
// required; power may be nil on targets without a low-power manager. Bus
// descriptors are validated up front, so an index that reaches the transfer
// path is always usable.
func NewDriver(
	cfgs []BusConfig,
	gp gpio.Controller,
	power clocks.Power,
	logger golog.Logger,
	opts ...Option,
) (*Driver, error) {
	if gp == nil {
		return nil, errors.New("spi: gpio controller is required")
	}
	for i := range cfgs {
		if err := cfgs[i].Validate(fmt.Sprintf("buses.%d", i)); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = golog.NewLogger("mcu.spi")
	}
	d := &Driver{
		cfgs:   cfgs,
		states: make([]busState, len(cfgs)),
		gpio:   gp,
		power:  power,
		logger: logger,
		clk:    clock.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// NumBuses returns the size of the bus table.
func (d *Driver) NumBuses() int {
	return len(d.cfgs)
}

func (d *Driver) conf(bus Bus) *BusConfig {
	if int(bus) >= len(d.cfgs) {
		panic(badBusIndex)
	}
	return &d.cfgs[bus]
}

// Init prepares a bus for first use: configures its pins, then briefly
// enables the clock domain to park the control registers in their neutral
// state. Call once per bus before any Acquire.
func (d *Driver) Init(bus Bus) error {
	cfg := d.conf(bus)
	if err := d.InitPins(bus); err != nil {
		return errors.Wrapf(err, "init pins for spi bus %d", bus)
	}
	cfg.Clock.Enable()
	cfg.Regs.SetCtl0(0)
	cfg.Regs.SetCtl1(ctl1Neutral)
	cfg.Clock.Disable()
	return nil
}

// InitPins configures the bus's data and clock pins and binds them to the
// peripheral's alternate function. Pins the board did not wire are skipped.
func (d *Driver) InitPins(bus Bus) error {
	cfg := d.conf(bus)
	return d.initPinModes(cfg, gpio.Output, gpio.Input, gpio.Output)
}

// InitWithGPIOMode is InitPins with caller-chosen pin modes, for targets
// whose wiring needs open-drain or pulled lines.
func (d *Driver) InitWithGPIOMode(bus Bus, m GPIOModeConfig) error {
	cfg := d.conf(bus)
	return d.initPinModes(cfg, m.MOSI, m.MISO, m.SCLK)
}

func (d *Driver) initPinModes(cfg *BusConfig, mosi, miso, sclk gpio.Mode) error {
	var err error
	if d.gpio.Valid(cfg.MOSI) {
		err = multierr.Combine(err, d.initAltPin(cfg.MOSI, mosi, cfg.MOSIAltFunc))
	}
	if d.gpio.Valid(cfg.MISO) {
		err = multierr.Combine(err, d.initAltPin(cfg.MISO, miso, cfg.MISOAltFunc))
	}
	if d.gpio.Valid(cfg.SCLK) {
		err = multierr.Combine(err, d.initAltPin(cfg.SCLK, sclk, cfg.SCLKAltFunc))
	}
	return err
}

func (d *Driver) initAltPin(p gpio.Pin, m gpio.Mode, af gpio.AltFunc) error {
	if err := d.gpio.Init(p, m); err != nil {
		return errors.Wrapf(err, "pin %d", p)
	}
	return errors.Wrapf(d.gpio.InitAltFunc(p, af), "pin %d alternate function", p)
}

// InitChipSelect validates and configures a chip select designator for use
// with Transfer on the given bus. It returns ErrNoDevice for an out-of-range
// bus and ErrNoChipSelect for a designator the bus cannot serve; both are
// recoverable by the caller picking different parameters.
func (d *Driver) InitChipSelect(bus Bus, cs ChipSelect) error {
	if int(bus) >= len(d.cfgs) {
		return ErrNoDevice
	}
	cfg := &d.cfgs[bus]

	switch {
	case cs == HardwareCS:
		if !d.gpio.Valid(cfg.CS) {
			return ErrNoChipSelect
		}
		if err := d.initAltPin(cfg.CS, gpio.Output, cfg.CSAltFunc); err != nil {
			return err
		}
	case cs&HardwareCS != 0:
		// The hardware sentinel combined with anything else designates
		// nothing.
		return ErrNoChipSelect
	case !d.gpio.Valid(gpio.Pin(cs)):
		return ErrNoChipSelect
	default:
		if err := d.gpio.Init(gpio.Pin(cs), gpio.Output); err != nil {
			return errors.Wrapf(err, "chip select pin %d", cs)
		}
		// Deasserted is high.
		d.gpio.Set(gpio.Pin(cs))
	}
	return nil
}
