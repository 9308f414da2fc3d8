package inject

import (
	"periph.io/x/conn/v3/physic"

	"go.viam.com/mcu/clocks"
)

// ClockDomain is an injected clocks.Domain.
type ClockDomain struct {
	clocks.Domain
	EnableFunc    func()
	DisableFunc   func()
	FrequencyFunc func() physic.Frequency
}

// Enable calls the injected Enable or the real version.
func (d *ClockDomain) Enable() {
	if d.EnableFunc == nil {
		d.Domain.Enable()
		return
	}
	d.EnableFunc()
}

// Disable calls the injected Disable or the real version.
func (d *ClockDomain) Disable() {
	if d.DisableFunc == nil {
		d.Domain.Disable()
		return
	}
	d.DisableFunc()
}

// Frequency calls the injected Frequency or the real version.
func (d *ClockDomain) Frequency() physic.Frequency {
	if d.FrequencyFunc == nil {
		return d.Domain.Frequency()
	}
	return d.FrequencyFunc()
}

// Power is an injected clocks.Power.
type Power struct {
	clocks.Power
	BlockIdleFunc   func()
	UnblockIdleFunc func()
}

// BlockIdle calls the injected BlockIdle or the real version.
func (p *Power) BlockIdle() {
	if p.BlockIdleFunc == nil {
		p.Power.BlockIdle()
		return
	}
	p.BlockIdleFunc()
}

// UnblockIdle calls the injected UnblockIdle or the real version.
func (p *Power) UnblockIdle() {
	if p.UnblockIdleFunc == nil {
		p.Power.UnblockIdle()
		return
	}
	p.UnblockIdleFunc()
}
