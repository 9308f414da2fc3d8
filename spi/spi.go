// Package spi implements a low-level driver for memory-mapped SPI master
// peripherals. It multiplexes each physical bus among multiple users with a
// per-bus lock, programs the bus clock divider to approximate a requested
// frequency, manages hardware- or GPIO-driven chip select, and moves bytes
// either by polling status flags or by handing the transfer to a pair of DMA
// channels.
//
// The driver owns the acquire/transfer/release protocol and the control
// register sequences; pin muxing, DMA channel internals, clock gating, and
// the actual register layout belong to the collaborator interfaces in the
// gpio, dma, and clocks packages and to the Regs implementation supplied per
// bus.
package spi

import (
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/mcu/clocks"
	"go.viam.com/mcu/dma"
	"go.viam.com/mcu/gpio"
)

// Bus indexes one physical SPI peripheral in the driver's bus table.
type Bus uint

// Mode selects the clock polarity and phase of a transfer. The constant
// values are the corresponding control register bits, so a Mode can be OR'd
// into CTL0 directly.
type Mode uint32

// The four standard SPI modes.
const (
	Mode0 Mode = 0
	Mode1 Mode = Ctl0ClockPhase
	Mode2 Mode = Ctl0ClockPolarity
	Mode3 Mode = Ctl0ClockPolarity | Ctl0ClockPhase
)

// ChipSelect designates the chip select line for a transfer: either a
// gpio.Pin number driven by the driver (active low), or HardwareCS to let
// the peripheral's own NSS output drive the line.
type ChipSelect uint32

// HardwareCS selects the peripheral's dedicated NSS output, which the
// hardware asserts while the peripheral is enabled. Combining it with any
// other bits is invalid.
const HardwareCS ChipSelect = 0x80000000

// Setup errors returned by InitChipSelect.
var (
	// ErrNoDevice means the bus index names no configured bus.
	ErrNoDevice = errors.New("spi: no such bus")
	// ErrNoChipSelect means the chip select designator is invalid or not
	// available on the bus.
	ErrNoChipSelect = errors.New("spi: invalid chip select")
)

// Strategy picks the transfer engine for a bus. It is fixed in the bus
// descriptor and resolved once per acquisition, never branched on per byte.
type Strategy uint8

const (
	// Polled moves bytes one at a time under status-flag polling.
	Polled Strategy = iota
	// DMA delegates whole transfers to the bus's DMA channel pair.
	DMA
)

// BusConfig describes one physical bus. It is immutable after the driver is
// constructed and shared by all users of that bus.
type BusConfig struct {
	// Regs is the peripheral's register file, supplied by the hardware
	// description layer.
	Regs Regs

	// Clock gates and reports the bus clock feeding this peripheral.
	Clock clocks.Domain

	// Data and clock pins. gpio.NoPin marks a line the board does not wire,
	// e.g. MISO on a write-only display bus.
	SCLK gpio.Pin
	MOSI gpio.Pin
	MISO gpio.Pin
	// CS is the peripheral's dedicated NSS pin, needed only for HardwareCS
	// operation. gpio.NoPin when the board routes no such pin.
	CS gpio.Pin

	SCLKAltFunc gpio.AltFunc
	MOSIAltFunc gpio.AltFunc
	MISOAltFunc gpio.AltFunc
	CSAltFunc   gpio.AltFunc

	// TxDMA and RxDMA are this bus's DMA channels, bound to the peripheral's
	// data register by the board layer. Both must be set for the DMA
	// strategy.
	TxDMA dma.Channel
	RxDMA dma.Channel

	// Strategy selects the transfer engine for this bus.
	Strategy Strategy
}

// Validate ensures all parts of the config are valid.
func (cfg *BusConfig) Validate(path string) error {
	if cfg.Regs == nil {
		return goutils.NewConfigValidationFieldRequiredError(path, "regs")
	}
	if cfg.Clock == nil {
		return goutils.NewConfigValidationFieldRequiredError(path, "clock")
	}
	switch cfg.Strategy {
	case Polled:
		// configured DMA channels just sit idle under the polled strategy
	case DMA:
		if cfg.TxDMA == nil || cfg.RxDMA == nil {
			return errors.Errorf("%s: dma strategy needs both tx_dma and rx_dma channels", path)
		}
	default:
		return errors.Errorf("%s: unknown transfer strategy %d", path, cfg.Strategy)
	}
	return nil
}

// GPIOModeConfig overrides the data-pin modes for buses whose targets need
// something other than the default push-pull/floating setup, such as
// open-drain lines on a shared header.
type GPIOModeConfig struct {
	MOSI gpio.Mode
	MISO gpio.Mode
	SCLK gpio.Mode
}
