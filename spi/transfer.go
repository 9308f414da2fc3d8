package spi

import (
	"fmt"
	"runtime"

	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"periph.io/x/conn/v3/physic"

	"go.viam.com/mcu/dma"
	"go.viam.com/mcu/gpio"
)

// Acquire locks the bus for the calling goroutine and configures it for the
// given chip select, mode, and clock, blocking until the previous holder
// releases. The divider is recomputed only when the requested clock differs
// from the bus's cached one, and only here, inside the clock-enabled window.
// Every Acquire must be paired with exactly one Release.
func (d *Driver) Acquire(bus Bus, cs ChipSelect, mode Mode, clk physic.Frequency) {
	cfg := d.conf(bus)
	st := &d.states[bus]

	st.mu.Lock()
	if d.power != nil {
		d.power.BlockIdle()
	}
	cfg.Clock.Enable()

	if clk != st.cachedClock {
		busClock := cfg.Clock.Frequency()
		st.cachedDivider = clockDivider(busClock, clk)
		st.cachedClock = clk
		d.logger.Debugf("spi bus %d: requested %s, divider %d, actual %s",
			bus, clk, st.cachedDivider, busClock/(1<<(st.cachedDivider+1)))
	}

	ctl0 := uint32(st.cachedDivider)<<Ctl0BaudShift | uint32(mode) | Ctl0Master
	var ctl1Extra uint32
	if cs != HardwareCS {
		// The NSS pin stays free for GPIO use; keep the internal NSS level
		// high so master mode holds.
		ctl0 |= Ctl0SoftNSSEnable | Ctl0SoftNSS
	} else {
		ctl1Extra = Ctl1NSSDrive
	}

	if cfg.Strategy == DMA {
		ctl1Extra |= Ctl1TxDMAEnable | Ctl1RxDMAEnable

		cfg.TxDMA.Acquire()
		cfg.TxDMA.Setup(dma.MemoryToPeriph, dma.WidthByte)
		cfg.RxDMA.Acquire()
		cfg.RxDMA.Setup(dma.PeriphToMemory, dma.WidthByte)
	}

	cfg.Regs.SetCtl0(ctl0)
	if ctl1Extra != 0 {
		cfg.Regs.SetCtl1(ctl1Neutral | ctl1Extra)
	}
}

// Release undoes Acquire: frees the DMA channels, parks the control
// registers, gates the clock domain, and unlocks the bus. It is the only
// path back to the idle state and must be called exactly once per Acquire.
func (d *Driver) Release(bus Bus) {
	cfg := d.conf(bus)
	st := &d.states[bus]

	if cfg.Strategy == DMA {
		if err := multierr.Combine(cfg.TxDMA.Release(), cfg.RxDMA.Release()); err != nil {
			d.logger.Errorw("releasing spi dma channels", "bus", bus, "error", err)
		}
	}
	cfg.Regs.SetCtl0(0)
	// Clears the DMA request and NSS drive flags.
	cfg.Regs.SetCtl1(ctl1Neutral)
	cfg.Clock.Disable()
	if d.power != nil {
		d.power.UnblockIdle()
	}
	st.mu.Unlock()
}

// Transfer exchanges bytes on an acquired bus. At least one of out and in
// must be non-nil; when both are given they must be the same length. A nil
// out transmits zero bytes to generate clock edges; a nil in discards the
// received bytes. Chip select is asserted for the duration of the call and,
// unless cont is set, deasserted before returning; cont lets a multi-phase
// transaction span several calls under one assertion window.
func (d *Driver) Transfer(bus Bus, cs ChipSelect, cont bool, out, in []byte) {
	cfg := d.conf(bus)
	if out == nil && in == nil {
		panic(badBuffers)
	}
	if out != nil && in != nil && len(out) != len(in) {
		panic(badBufferLens)
	}

	// Enabling the peripheral pulls the hardware NSS line low.
	cfg.Regs.SetCtl0(cfg.Regs.Ctl0() | Ctl0Enable)
	if cs != HardwareCS && d.gpio.Valid(gpio.Pin(cs)) {
		d.gpio.Clear(gpio.Pin(cs))
	}

	if cfg.Strategy == DMA {
		d.transferDMA(cfg, &d.states[bus], out, in)
	} else {
		d.transferPolled(cfg, out, in)
	}

	if !cont {
		cfg.Regs.SetCtl0(cfg.Regs.Ctl0() &^ Ctl0Enable)
		if cs != HardwareCS && d.gpio.Valid(gpio.Pin(cs)) {
			d.gpio.Set(gpio.Pin(cs))
		}
	}
}

func (d *Driver) transferPolled(cfg *BusConfig, out, in []byte) {
	regs := cfg.Regs

	switch {
	case in == nil:
		for i := range out {
			d.waitStat(regs, StatTxEmpty, true)
			regs.SetData(out[i])
		}
		d.waitEnd(regs)
		// The bus is full duplex: every transmitted byte clocked one in.
		// Drain what the caller did not ask for so the next transfer does
		// not start on a stale byte.
		for regs.Stat()&StatRxNotEmpty != 0 {
			regs.Data()
		}
	case out == nil:
		for i := range in {
			d.waitStat(regs, StatTxEmpty, true)
			regs.SetData(0)
			d.waitStat(regs, StatRxNotEmpty, true)
			in[i] = regs.Data()
		}
		d.waitEnd(regs)
	default:
		for i := range out {
			d.waitStat(regs, StatTxEmpty, true)
			regs.SetData(out[i])
			d.waitStat(regs, StatRxNotEmpty, true)
			in[i] = regs.Data()
		}
		d.waitEnd(regs)
	}
}

func (d *Driver) transferDMA(cfg *BusConfig, st *busState, out, in []byte) {
	n := len(out)
	if out == nil {
		n = len(in)
	}
	st.scratch[0] = 0

	// Arm the receive side first so it is ready before transmit drive
	// begins; armed late, it could miss the first bytes. A one-byte,
	// non-incrementing scratch cell stands in for whichever buffer the
	// caller omitted, since the receive path must be drained and the
	// transmit path must be fed regardless.
	if in != nil {
		cfg.RxDMA.Prepare(in, n, true)
	} else {
		cfg.RxDMA.Prepare(st.scratch[:], n, false)
	}
	if out != nil {
		cfg.TxDMA.Prepare(out, n, true)
	} else {
		cfg.TxDMA.Prepare(st.scratch[:], n, false)
	}

	cfg.RxDMA.Start()
	cfg.TxDMA.Start()

	cfg.RxDMA.Wait()
	cfg.TxDMA.Wait()

	goutils.UncheckedError(multierr.Combine(cfg.RxDMA.Stop(), cfg.TxDMA.Stop()))

	// Completion means the last byte was handed to the peripheral, not that
	// it finished shifting onto the wire.
	d.waitEnd(cfg.Regs)
}

// waitStat spins until the masked status flag reads as want. The spin yields
// the processor each iteration and is unbounded unless the driver was built
// with WithWaitTimeout.
func (d *Driver) waitStat(regs Regs, mask uint32, want bool) {
	bounded := d.waitTimeout > 0
	var deadline int64
	if bounded {
		deadline = d.clk.Now().Add(d.waitTimeout).UnixNano()
	}
	for (regs.Stat()&mask != 0) != want {
		if bounded && d.clk.Now().UnixNano() > deadline {
			panic(fmt.Sprintf("spi: peripheral stuck, status flag %#x never read %v", mask, want))
		}
		runtime.Gosched()
	}
}

// waitEnd blocks until the transmit buffer is empty and the shifter is idle.
// Disabling or reconfiguring the peripheral any earlier would corrupt the
// final byte; see the reference manual's "Disabling the SPI" sequence.
func (d *Driver) waitEnd(regs Regs) {
	d.waitStat(regs, StatTxEmpty, true)
	d.waitStat(regs, StatTransferring, false)
}
