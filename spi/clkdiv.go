package spi

import (
	"math/bits"

	"periph.io/x/conn/v3/physic"
)

// MaxDivider is the largest divider selector the peripheral accepts.
// Selector n divides the bus clock by 2^(n+1), so the slowest reachable SPI
// clock is busClock/256.
const MaxDivider = 7

// clockShift scales the divider ratio into fixed point so fractional ratios
// survive the integer division below.
const clockShift = 4

// clockDivider maps a bus input clock and a requested SPI clock to a divider
// selector. The resulting SPI clock never exceeds the request; when even the
// smallest division factor is too fast to honor it, the request is
// unreachable and the fastest clock (selector 0) is an accepted
// approximation. Pure function of its inputs.
func clockDivider(busClock, requested physic.Frequency) uint8 {
	if requested <= 0 {
		panic(badClock)
	}
	ratio := (uint64(busClock/physic.Hertz) << clockShift) / (2 * uint64(requested/physic.Hertz))
	if ratio <= 1<<clockShift {
		return 0
	}
	// Highest set bit, compensated for the fixed-point shift.
	sel := uint8(bits.Len64(ratio)-1) - clockShift
	if ratio&(ratio-1) != 0 {
		// Not an exact power of two: round up so the clock undershoots the
		// request rather than overshooting it.
		sel++
	}
	if sel > MaxDivider {
		return MaxDivider
	}
	return sel
}
