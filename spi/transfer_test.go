package spi_test

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"go.viam.com/test"
	"periph.io/x/conn/v3/physic"

	"go.viam.com/mcu/gpio"
	"go.viam.com/mcu/spi"
	"go.viam.com/mcu/spi/spitest"
	"go.viam.com/mcu/testutils/inject"
)

func TestTransferLoopback(t *testing.T) {
	for _, strategy := range []spi.Strategy{spi.Polled, spi.DMA} {
		f := newFixture(t, spitest.NewLoopback(), strategy)

		out := []byte{0xAA, 0xBB, 0xCC}
		in := make([]byte, 3)
		f.driver.Acquire(0, csPin, spi.Mode0, 8*physic.MegaHertz)
		f.driver.Transfer(0, csPin, false, out, in)
		f.driver.Release(0)

		test.That(t, in, test.ShouldResemble, out)
		test.That(t, f.periph.PendingRx(), test.ShouldEqual, 0)
	}
}

func TestTransferOutputOnlyLeavesCleanBus(t *testing.T) {
	for _, strategy := range []spi.Strategy{spi.Polled, spi.DMA} {
		// The target answers every byte with its complement, so a stale
		// byte from the first transfer is distinguishable from the answer
		// to a dummy zero.
		f := newFixture(t, spitest.NewPeripheral(func(b byte) byte { return ^b }), strategy)

		f.driver.Acquire(0, csPin, spi.Mode0, 8*physic.MegaHertz)
		f.driver.Transfer(0, csPin, false, []byte{0x11, 0x22, 0x33}, nil)
		test.That(t, f.periph.PendingRx(), test.ShouldEqual, 0)

		in := make([]byte, 2)
		f.driver.Transfer(0, csPin, false, nil, in)
		f.driver.Release(0)

		test.That(t, in, test.ShouldResemble, []byte{0xFF, 0xFF})
	}
}

func TestTransferInputOnly(t *testing.T) {
	f := newFixture(t, spitest.NewPeripheral(func(byte) byte { return 0x5A }), spi.Polled)

	in := make([]byte, 4)
	f.driver.Acquire(0, csPin, spi.Mode0, 8*physic.MegaHertz)
	f.driver.Transfer(0, csPin, false, nil, in)
	f.driver.Release(0)

	test.That(t, in, test.ShouldResemble, []byte{0x5A, 0x5A, 0x5A, 0x5A})
}

func TestTransferContractViolations(t *testing.T) {
	f := newFixture(t, spitest.NewLoopback(), spi.Polled)

	test.That(t, func() { f.driver.Transfer(0, csPin, false, nil, nil) }, test.ShouldPanic)
	test.That(t, func() {
		f.driver.Transfer(0, csPin, false, make([]byte, 2), make([]byte, 3))
	}, test.ShouldPanic)
	test.That(t, func() { f.driver.Transfer(3, csPin, false, make([]byte, 1), nil) }, test.ShouldPanic)
}

func TestChipSelectFraming(t *testing.T) {
	f := newFixture(t, spitest.NewLoopback(), spi.Polled)
	test.That(t, f.driver.InitChipSelect(0, csPin), test.ShouldBeNil)

	f.driver.Acquire(0, csPin, spi.Mode0, 8*physic.MegaHertz)
	f.driver.Transfer(0, csPin, true, []byte{0x01}, nil)
	test.That(t, f.pins.level(gpio.Pin(csPin)), test.ShouldBeFalse)
	f.driver.Transfer(0, csPin, true, []byte{0x02}, nil)
	test.That(t, f.pins.level(gpio.Pin(csPin)), test.ShouldBeFalse)
	f.driver.Transfer(0, csPin, false, []byte{0x03}, nil)
	f.driver.Release(0)

	test.That(t, f.pins.level(gpio.Pin(csPin)), test.ShouldBeTrue)

	// One assertion window across the whole sequence: the line went low,
	// stayed low through the continued transfers, and rose exactly once at
	// the end. The leading high is InitChipSelect parking the line.
	evs := f.pins.eventsFor(gpio.Pin(csPin))
	test.That(t, evs[0].high, test.ShouldBeTrue)
	test.That(t, evs[len(evs)-1].high, test.ShouldBeTrue)
	for _, ev := range evs[1 : len(evs)-1] {
		test.That(t, ev.high, test.ShouldBeFalse)
	}
}

func TestChipSelectFramingHardware(t *testing.T) {
	f := newFixture(t, spitest.NewLoopback(), spi.Polled)
	test.That(t, f.driver.InitChipSelect(0, spi.HardwareCS), test.ShouldBeNil)

	f.driver.Acquire(0, spi.HardwareCS, spi.Mode0, 8*physic.MegaHertz)
	// Hardware CS drives the NSS output while the peripheral is enabled.
	test.That(t, f.periph.Ctl1()&spi.Ctl1NSSDrive, test.ShouldNotEqual, uint32(0))

	f.driver.Transfer(0, spi.HardwareCS, true, []byte{0x01}, nil)
	test.That(t, f.periph.Enabled(), test.ShouldBeTrue)
	f.driver.Transfer(0, spi.HardwareCS, false, []byte{0x02}, nil)
	test.That(t, f.periph.Enabled(), test.ShouldBeFalse)
	f.driver.Release(0)
}

func TestAcquireProgramsControlRegisters(t *testing.T) {
	f := newFixture(t, spitest.NewLoopback(), spi.Polled)

	f.driver.Acquire(0, csPin, spi.Mode3, 8*physic.MegaHertz)
	// 48 MHz bus at 8 MHz requested lands on divide-by-8, selector 2.
	want := uint32(2)<<spi.Ctl0BaudShift |
		uint32(spi.Mode3) |
		spi.Ctl0Master |
		spi.Ctl0SoftNSSEnable | spi.Ctl0SoftNSS
	test.That(t, f.periph.Ctl0(), test.ShouldEqual, want)
	f.driver.Release(0)
}

func TestAcquireCachesDivider(t *testing.T) {
	f := newFixture(t, spitest.NewLoopback(), spi.Polled)

	f.driver.Acquire(0, csPin, spi.Mode0, 8*physic.MegaHertz)
	f.driver.Release(0)
	f.driver.Acquire(0, csPin, spi.Mode0, 8*physic.MegaHertz)
	f.driver.Release(0)
	// Same clock twice: the divider came from the cache the second time.
	test.That(t, f.freqCalls.Load(), test.ShouldEqual, 1)

	f.driver.Acquire(0, csPin, spi.Mode0, 1*physic.MegaHertz)
	f.driver.Release(0)
	test.That(t, f.freqCalls.Load(), test.ShouldEqual, 2)
}

func TestReleaseParksBus(t *testing.T) {
	f := newFixture(t, spitest.NewLoopback(), spi.DMA)

	f.driver.Acquire(0, csPin, spi.Mode0, 8*physic.MegaHertz)
	f.driver.Transfer(0, csPin, false, []byte{0x42}, nil)
	f.driver.Release(0)

	test.That(t, f.periph.Ctl0(), test.ShouldEqual, uint32(0))
	test.That(t, f.periph.Ctl1(), test.ShouldEqual,
		uint32(spi.Ctl1DataSize8Bit|spi.Ctl1RxThresholdByte))
	test.That(t, f.enables.Load(), test.ShouldEqual, f.disables.Load())
	test.That(t, f.blocks.Load(), test.ShouldEqual, f.unblocks.Load())
}

func TestMutualExclusion(t *testing.T) {
	f := newFixture(t, spitest.NewLoopback(), spi.Polled)

	f.driver.Acquire(0, csPin, spi.Mode0, 8*physic.MegaHertz)

	acquired := make(chan struct{})
	go func() {
		f.driver.Acquire(0, csPin, spi.Mode0, 8*physic.MegaHertz)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire proceeded while the bus was held")
	case <-time.After(50 * time.Millisecond):
	}

	f.driver.Release(0)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never proceeded after release")
	}
	f.driver.Release(0)
}

func TestDMAStartsReceiveFirst(t *testing.T) {
	periph := spitest.NewLoopback()
	f := &fixture{periph: periph, pins: newPinRecorder()}

	var order []string
	tx := spitest.NewChannel(periph)
	rx := spitest.NewChannel(periph)
	cfg := spi.BusConfig{
		Regs:  periph,
		Clock: f.domain(),
		SCLK:  pinSCLK,
		MOSI:  pinMOSI,
		MISO:  pinMISO,
		CS:    pinNSS,
		TxDMA: &inject.DMAChannel{
			Channel:     tx,
			PrepareFunc: func(mem []byte, count int, incr bool) { order = append(order, "tx-prepare"); tx.Prepare(mem, count, incr) },
			StartFunc:   func() { order = append(order, "tx-start"); tx.Start() },
		},
		RxDMA: &inject.DMAChannel{
			Channel:     rx,
			PrepareFunc: func(mem []byte, count int, incr bool) { order = append(order, "rx-prepare"); rx.Prepare(mem, count, incr) },
			StartFunc:   func() { order = append(order, "rx-start"); rx.Start() },
		},
		Strategy: spi.DMA,
	}
	driver, err := spi.NewDriver([]spi.BusConfig{cfg}, f.pins.controller(), nil, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	in := make([]byte, 2)
	driver.Acquire(0, csPin, spi.Mode0, 8*physic.MegaHertz)
	driver.Transfer(0, csPin, false, []byte{0x10, 0x20}, in)
	driver.Release(0)

	test.That(t, in, test.ShouldResemble, []byte{0x10, 0x20})
	test.That(t, order, test.ShouldResemble, []string{"rx-prepare", "tx-prepare", "rx-start", "tx-start"})
}

func TestWaitTimeoutPanicsOnWedgedPeripheral(t *testing.T) {
	mock := clock.NewMock()
	periph := spitest.NewLoopback()
	periph.WedgeTransmit()
	f := newFixture(t, periph, spi.Polled, spi.WithWaitTimeout(time.Second, mock))

	f.driver.Acquire(0, csPin, spi.Mode0, 8*physic.MegaHertz)

	panicked := make(chan interface{}, 1)
	go func() {
		defer func() { panicked <- recover() }()
		f.driver.Transfer(0, csPin, false, []byte{0x01}, nil)
	}()

	// Keep advancing fake time until the spin loop sees its deadline pass;
	// the first advance can race the transfer goroutine computing it.
	giveUp := time.After(5 * time.Second)
	for {
		mock.Add(2 * time.Second)
		select {
		case v := <-panicked:
			test.That(t, v, test.ShouldNotBeNil)
			return
		case <-time.After(50 * time.Millisecond):
		case <-giveUp:
			t.Fatal("wedged transfer neither panicked nor returned")
		}
	}
}
