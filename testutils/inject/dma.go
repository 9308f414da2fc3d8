package inject

import "go.viam.com/mcu/dma"

// DMAChannel is an injected dma.Channel.
type DMAChannel struct {
	dma.Channel
	AcquireFunc func()
	ReleaseFunc func() error
	SetupFunc   func(dir dma.Direction, w dma.Width)
	PrepareFunc func(mem []byte, count int, incr bool)
	StartFunc   func()
	WaitFunc    func()
	StopFunc    func() error
}

// Acquire calls the injected Acquire or the real version.
func (ch *DMAChannel) Acquire() {
	if ch.AcquireFunc == nil {
		ch.Channel.Acquire()
		return
	}
	ch.AcquireFunc()
}

// Release calls the injected Release or the real version.
func (ch *DMAChannel) Release() error {
	if ch.ReleaseFunc == nil {
		return ch.Channel.Release()
	}
	return ch.ReleaseFunc()
}

// Setup calls the injected Setup or the real version.
func (ch *DMAChannel) Setup(dir dma.Direction, w dma.Width) {
	if ch.SetupFunc == nil {
		ch.Channel.Setup(dir, w)
		return
	}
	ch.SetupFunc(dir, w)
}

// Prepare calls the injected Prepare or the real version.
func (ch *DMAChannel) Prepare(mem []byte, count int, incr bool) {
	if ch.PrepareFunc == nil {
		ch.Channel.Prepare(mem, count, incr)
		return
	}
	ch.PrepareFunc(mem, count, incr)
}

// Start calls the injected Start or the real version.
func (ch *DMAChannel) Start() {
	if ch.StartFunc == nil {
		ch.Channel.Start()
		return
	}
	ch.StartFunc()
}

// Wait calls the injected Wait or the real version.
func (ch *DMAChannel) Wait() {
	if ch.WaitFunc == nil {
		ch.Channel.Wait()
		return
	}
	ch.WaitFunc()
}

// Stop calls the injected Stop or the real version.
func (ch *DMAChannel) Stop() error {
	if ch.StopFunc == nil {
		return ch.Channel.Stop()
	}
	return ch.StopFunc()
}
