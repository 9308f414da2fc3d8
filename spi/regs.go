package spi

// Regs is the register file of one SPI peripheral instance. The hardware
// description layer backs it with real memory-mapped registers; tests back
// it with a simulated peripheral. The driver owns the bit-level meaning of
// the words it reads and writes, declared below.
type Regs interface {
	Ctl0() uint32
	SetCtl0(v uint32)
	Ctl1() uint32
	SetCtl1(v uint32)
	Stat() uint32
	// Data and SetData access the data register with byte width. The
	// peripheral's receive path is full duplex: every byte written
	// eventually makes one byte readable.
	Data() byte
	SetData(b byte)
}

// Control register 0 bits.
const (
	Ctl0ClockPhase    = 1 << 0 // CKPH: capture on second clock edge
	Ctl0ClockPolarity = 1 << 1 // CKPL: clock idles high
	Ctl0Master        = 1 << 2 // MSTMOD
	Ctl0Enable        = 1 << 6 // SPIEN: also drives hardware NSS low
	Ctl0SoftNSS       = 1 << 8 // SWNSS: NSS level under software control
	Ctl0SoftNSSEnable = 1 << 9 // SWNSSEN: take NSS from SWNSS, free the pin
)

// Ctl0BaudShift is the position of the BR divider selector field in CTL0.
const Ctl0BaudShift = 3

// Control register 1 bits.
const (
	Ctl1RxDMAEnable     = 1 << 0  // DMAREN: receive buffer requests DMA
	Ctl1TxDMAEnable     = 1 << 1  // DMATEN: transmit buffer requests DMA
	Ctl1NSSDrive        = 1 << 2  // NSSDRV: drive NSS output while enabled
	Ctl1DataSize8Bit    = 7 << 8  // DS: 8-bit frames
	Ctl1RxThresholdByte = 1 << 12 // FRXTH: RBNE at one byte, not half FIFO
)

// ctl1Neutral is the resting CTL1 value: byte-wide frames with a one-byte
// receive threshold, no DMA requests, NSS output released.
const ctl1Neutral = Ctl1DataSize8Bit | Ctl1RxThresholdByte

// Status register bits.
const (
	StatRxNotEmpty   = 1 << 0 // RBNE
	StatTxEmpty      = 1 << 1 // TBE
	StatTransferring = 1 << 7 // TRANS: a frame is still shifting
)
