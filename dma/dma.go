// Package dma defines the DMA-channel collaborator interface used by drivers
// that offload bulk transfers. The channel implementation itself (stream
// selection, request-line muxing, interrupt handling) belongs to the board's
// DMA driver; this package only fixes the contract the peripheral drivers
// program against.
package dma

// Direction selects which way a channel moves data relative to the
// peripheral it is bound to.
type Direction uint8

const (
	// MemoryToPeriph reads from a memory buffer and writes to the bound
	// peripheral's data register.
	MemoryToPeriph Direction = iota
	// PeriphToMemory reads from the bound peripheral's data register and
	// writes to a memory buffer.
	PeriphToMemory
)

// Width is the size of a single DMA beat.
type Width uint8

const (
	// WidthByte transfers one byte per beat.
	WidthByte Width = iota
	// WidthHalfWord transfers two bytes per beat.
	WidthHalfWord
	// WidthWord transfers four bytes per beat.
	WidthWord
)

// Channel is one reservable DMA channel, already bound by the board layer to
// a specific peripheral request line (for a SPI bus, its data register).
//
// The usage protocol is Acquire, Setup, then per transfer Prepare, Start,
// Wait (optionally Stop), and finally Release. Acquire and Wait block the
// calling goroutine; everything between Acquire and Release is owned
// exclusively by the caller.
type Channel interface {
	// Acquire reserves the channel, blocking until the previous user has
	// released it.
	Acquire()

	// Release returns the channel reservation.
	Release() error

	// Setup programs the transfer direction and beat width. Called once per
	// acquisition, before any Prepare.
	Setup(dir Direction, w Width)

	// Prepare arms the channel with a memory buffer for the next transfer of
	// count beats. When incr is true the memory address advances each beat
	// and count must not exceed len(mem); when false every beat uses mem[0],
	// which lets a one-byte scratch cell source or sink a whole transfer.
	Prepare(mem []byte, count int, incr bool)

	// Start begins the prepared transfer.
	Start()

	// Wait blocks until the started transfer has moved its final beat.
	Wait()

	// Stop disables the channel after a completed transfer, on hardware
	// whose channels stay enabled until told otherwise.
	Stop() error
}
