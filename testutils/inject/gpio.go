// Package inject provides dependency-injected collaborator implementations
// with the ability to set how each function behaves. Calls to a function
// with no injected version fall through to the embedded interface, panicking
// when there is none.
package inject

import "go.viam.com/mcu/gpio"

// GPIOController is an injected gpio.Controller.
type GPIOController struct {
	gpio.Controller
	ValidFunc       func(p gpio.Pin) bool
	InitFunc        func(p gpio.Pin, m gpio.Mode) error
	InitAltFuncFunc func(p gpio.Pin, af gpio.AltFunc) error
	SetFunc         func(p gpio.Pin)
	ClearFunc       func(p gpio.Pin)
}

// Valid calls the injected Valid or the real version.
func (g *GPIOController) Valid(p gpio.Pin) bool {
	if g.ValidFunc == nil {
		return g.Controller.Valid(p)
	}
	return g.ValidFunc(p)
}

// Init calls the injected Init or the real version.
func (g *GPIOController) Init(p gpio.Pin, m gpio.Mode) error {
	if g.InitFunc == nil {
		return g.Controller.Init(p, m)
	}
	return g.InitFunc(p, m)
}

// InitAltFunc calls the injected InitAltFunc or the real version.
func (g *GPIOController) InitAltFunc(p gpio.Pin, af gpio.AltFunc) error {
	if g.InitAltFuncFunc == nil {
		return g.Controller.InitAltFunc(p, af)
	}
	return g.InitAltFuncFunc(p, af)
}

// Set calls the injected Set or the real version.
func (g *GPIOController) Set(p gpio.Pin) {
	if g.SetFunc == nil {
		g.Controller.Set(p)
		return
	}
	g.SetFunc(p)
}

// Clear calls the injected Clear or the real version.
func (g *GPIOController) Clear(p gpio.Pin) {
	if g.ClearFunc == nil {
		g.Controller.Clear(p)
		return
	}
	g.ClearFunc(p)
}
