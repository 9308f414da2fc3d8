package spi

import (
	"testing"

	"go.viam.com/test"
	"periph.io/x/conn/v3/physic"
)

func TestClockDividerScenario(t *testing.T) {
	// 48 MHz bus, 8 MHz requested: 48/2=24 has no exact power-of-two
	// divisor at or under the request, so the nearest non-exceeding one is
	// divide-by-8 (selector 2), giving 6 MHz.
	sel := clockDivider(48*physic.MegaHertz, 8*physic.MegaHertz)
	test.That(t, sel, test.ShouldEqual, 2)
}

func TestClockDividerExactPowersOfTwo(t *testing.T) {
	for _, tc := range []struct {
		requested physic.Frequency
		selector  uint8
	}{
		{24 * physic.MegaHertz, 0},
		{12 * physic.MegaHertz, 1},
		{6 * physic.MegaHertz, 2},
		{3 * physic.MegaHertz, 3},
		{1500 * physic.KiloHertz, 4},
		{750 * physic.KiloHertz, 5},
		{375 * physic.KiloHertz, 6},
	} {
		sel := clockDivider(48*physic.MegaHertz, tc.requested)
		test.That(t, sel, test.ShouldEqual, tc.selector)
	}
}

func TestClockDividerNeverOvershoots(t *testing.T) {
	busClocks := []physic.Frequency{
		16 * physic.MegaHertz,
		30 * physic.MegaHertz,
		48 * physic.MegaHertz,
		64 * physic.MegaHertz,
		72 * physic.MegaHertz,
	}
	requests := []physic.Frequency{
		100 * physic.KiloHertz,
		400 * physic.KiloHertz,
		1 * physic.MegaHertz,
		5 * physic.MegaHertz,
		8 * physic.MegaHertz,
		10 * physic.MegaHertz,
		24 * physic.MegaHertz,
		40 * physic.MegaHertz,
	}
	for _, busClock := range busClocks {
		for _, requested := range requests {
			sel := clockDivider(busClock, requested)
			actual := busClock / (1 << (sel + 1))
			switch {
			case requested >= busClock/2:
				// Unreachable request: fastest clock, overshoot accepted.
				test.That(t, sel, test.ShouldEqual, 0)
			case requested < busClock/(1<<(MaxDivider+1)):
				// Slower than the largest division factor can reach.
				test.That(t, sel, test.ShouldEqual, uint8(MaxDivider))
			default:
				test.That(t, actual, test.ShouldBeLessThanOrEqualTo, requested)
			}
		}
	}
}

func TestClockDividerClampsToMax(t *testing.T) {
	sel := clockDivider(72*physic.MegaHertz, 1*physic.KiloHertz)
	test.That(t, sel, test.ShouldEqual, uint8(MaxDivider))
}

func TestClockDividerIsPure(t *testing.T) {
	first := clockDivider(48*physic.MegaHertz, 5*physic.MegaHertz)
	second := clockDivider(48*physic.MegaHertz, 5*physic.MegaHertz)
	test.That(t, first, test.ShouldEqual, second)
}

func TestClockDividerRejectsZeroClock(t *testing.T) {
	test.That(t, func() { clockDivider(48*physic.MegaHertz, 0) }, test.ShouldPanic)
}
