// Package spitest provides an in-memory SPI peripheral and a software DMA
// engine wired to it, for exercising the spi driver without hardware. The
// simulated part shifts instantaneously: a byte written to the data register
// immediately produces the wired response in the receive queue.
package spitest

import (
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/mcu/dma"
	"go.viam.com/mcu/spi"
)

var (
	errUnclaimed  = errors.New("spitest: channel released without being acquired")
	errNotStarted = errors.New("spitest: channel stopped without being started")
)

// Peripheral implements spi.Regs as a simulated device on the far end of the
// bus. The wiring function maps each transmitted byte to the byte seen on
// MISO; NewLoopback ties the two lines together.
type Peripheral struct {
	mu     sync.Mutex
	ctl0   uint32
	ctl1   uint32
	rx     []byte
	wiring func(b byte) byte

	wedgedTx bool
}

// NewPeripheral returns a simulated peripheral whose target device answers
// each transmitted byte with wiring(byte).
func NewPeripheral(wiring func(b byte) byte) *Peripheral {
	return &Peripheral{wiring: wiring}
}

// NewLoopback returns a simulated peripheral with MOSI wired to MISO.
func NewLoopback() *Peripheral {
	return NewPeripheral(func(b byte) byte { return b })
}

// Ctl0 implements spi.Regs.
func (p *Peripheral) Ctl0() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctl0
}

// SetCtl0 implements spi.Regs.
func (p *Peripheral) SetCtl0(v uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctl0 = v
}

// Ctl1 implements spi.Regs.
func (p *Peripheral) Ctl1() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctl1
}

// SetCtl1 implements spi.Regs.
func (p *Peripheral) SetCtl1(v uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctl1 = v
}

// Stat implements spi.Regs. The transmit buffer is always empty (the
// simulation shifts instantly) unless the peripheral was wedged, the receive
// flag tracks the queue, and the shifter is never mid-frame.
func (p *Peripheral) Stat() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var s uint32
	if !p.wedgedTx {
		s |= spi.StatTxEmpty
	}
	if len(p.rx) > 0 {
		s |= spi.StatRxNotEmpty
	}
	return s
}

// SetData implements spi.Regs: the wired response to the written byte joins
// the receive queue. The queue is unbounded so undrained bytes stay visible
// to later transfers, the way stale FIFO contents would on hardware.
func (p *Peripheral) SetData(b byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rx = append(p.rx, p.wiring(b))
}

// Data implements spi.Regs, popping the oldest received byte.
func (p *Peripheral) Data() byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.rx) == 0 {
		return 0
	}
	b := p.rx[0]
	p.rx = p.rx[1:]
	return b
}

// Enabled reports whether the peripheral enable bit is set, which on
// hardware is what holds the NSS output asserted.
func (p *Peripheral) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctl0&spi.Ctl0Enable != 0
}

// PendingRx returns how many received bytes sit undrained in the queue.
func (p *Peripheral) PendingRx() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rx)
}

// WedgeTransmit makes the transmit-empty flag stick low from now on, off
// the way a peripheral with a dead clock source would look to the driver.
func (p *Peripheral) WedgeTransmit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wedgedTx = true
}

// Channel is a software DMA channel bound to a Peripheral's data register.
// It implements dma.Channel: memory-to-peripheral transfers push bytes
// through the simulated shifter on Start, peripheral-to-memory transfers
// collect the receive queue on Wait.
type Channel struct {
	reservation sync.Mutex

	p *Peripheral

	mu      sync.Mutex
	claimed bool
	dir     dma.Direction
	mem     []byte
	count   int
	incr    bool
	started bool
}

// NewChannel returns a software DMA channel serving the given peripheral.
func NewChannel(p *Peripheral) *Channel {
	return &Channel{p: p}
}

// Acquire implements dma.Channel.
func (ch *Channel) Acquire() {
	ch.reservation.Lock()
	ch.mu.Lock()
	ch.claimed = true
	ch.mu.Unlock()
}

// Release implements dma.Channel.
func (ch *Channel) Release() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if !ch.claimed {
		return errUnclaimed
	}
	ch.claimed = false
	ch.reservation.Unlock()
	return nil
}

// Setup implements dma.Channel. The width is accepted and ignored; the
// simulated data register is byte wide regardless.
func (ch *Channel) Setup(dir dma.Direction, _ dma.Width) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.dir = dir
}

// Prepare implements dma.Channel.
func (ch *Channel) Prepare(mem []byte, count int, incr bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.mem = mem
	ch.count = count
	ch.incr = incr
}

// Start implements dma.Channel.
func (ch *Channel) Start() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.started = true
	if ch.dir != dma.MemoryToPeriph {
		return
	}
	for i := 0; i < ch.count; i++ {
		idx := 0
		if ch.incr {
			idx = i
		}
		ch.p.SetData(ch.mem[idx])
	}
}

// Wait implements dma.Channel.
func (ch *Channel) Wait() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.dir != dma.PeriphToMemory {
		return
	}
	for i := 0; i < ch.count; i++ {
		idx := 0
		if ch.incr {
			idx = i
		}
		ch.mem[idx] = ch.p.Data()
	}
}

// Stop implements dma.Channel.
func (ch *Channel) Stop() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if !ch.started {
		return errNotStarted
	}
	ch.started = false
	return nil
}
