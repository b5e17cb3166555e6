package lamp

import (
	"github.com/xanderflood/arcadehub/pkg/button"
	"github.com/xanderflood/arcadehub/pkg/gpio"
)

//Lamp the LED built into an arcade button
type Lamp interface {
	Set(bool)
	Show(button.State)
}

//LampAgent standard lamp implementation
type LampAgent struct {
	pin      gpio.OutputPin
	inverted bool
	on       bool
}

//New control a lamp. Inverted lamps are lit by driving the pin low, as
//on most relay boards.
func New(pin gpio.OutputPin, inverted bool) *LampAgent {
	return &LampAgent{
		pin:      pin,
		inverted: inverted,
	}
}

//Set turn the lamp on or off
func (l *LampAgent) Set(on bool) {
	l.on = on
	gpio.Set(l.pin, on != l.inverted) //xor
}

//Show light the lamp while the button is down
func (l *LampAgent) Show(s button.State) {
	l.Set(s == button.Pressed || s == button.Held)
}

//Err the error from the last write, for pins that report one
func (l *LampAgent) Err() error {
	if p, ok := l.pin.(gpio.WriteErrorer); ok {
		return p.Err()
	}
	return nil
}

//On whether the lamp was last turned on
func (l *LampAgent) On() bool {
	return l.on
}
