// Package clocks defines the clock-tree and power-management collaborator
// interfaces for the peripheral drivers in this module. The concrete
// implementation (RCU/RCC programming, sleep-state bookkeeping) is owned by
// the board layer.
package clocks

import "periph.io/x/conn/v3/physic"

// Domain gates the bus clock feeding one peripheral instance and reports
// that bus's current frequency.
//
// Frequency must only be called while the domain is enabled; reading clock
// configuration registers of a gated domain is undefined on some parts.
type Domain interface {
	// Enable ungates the peripheral's bus clock.
	Enable()

	// Disable gates the peripheral's bus clock.
	Disable()

	// Frequency returns the current frequency of the bus feeding the
	// peripheral.
	Frequency() physic.Frequency
}

// Power vetoes low-power states while a driver holds hardware in a state
// that deep sleep would corrupt, such as mid-transfer.
type Power interface {
	// BlockIdle prevents the power manager from entering states that stop
	// peripheral clocks. Calls nest: each BlockIdle needs a matching
	// UnblockIdle.
	BlockIdle()

	// UnblockIdle drops one BlockIdle veto.
	UnblockIdle()
}
