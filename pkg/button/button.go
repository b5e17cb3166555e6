package button

import (
	"fmt"

	"github.com/xanderflood/arcadehub/pkg/gpio"
)

//Button a momentary pushbutton wired to a digital input. A Button is not
//safe for concurrent use; drive each one from a single polling loop.
type Button struct {
	number      int
	description string
	keyCode     int
	hasKeyCode  bool

	pin   gpio.InputPin
	state State
}

//New configures pin as an input and returns an UnPressed button
func New(number int, description string, pin gpio.InputPin) (*Button, error) {
	b := &Button{
		number:      number,
		description: description,
		state:       UnPressed,
	}
	if err := b.SetPin(pin); err != nil {
		return nil, err
	}
	return b, nil
}

//NewWithKeyCode same as New, also assigning the key code a dispatcher
//should emit for this button
func NewWithKeyCode(number int, description string, pin gpio.InputPin, keyCode int) (*Button, error) {
	b, err := New(number, description, pin)
	if err != nil {
		return nil, err
	}
	b.SetKeyCode(keyCode)
	return b, nil
}

//SetPin configures pin as an input and samples it from now on
func (b *Button) SetPin(pin gpio.InputPin) error {
	if err := pin.Input(); err != nil {
		return fmt.Errorf("failed configuring input for button %d: %w", b.number, err)
	}
	b.pin = pin
	return nil
}

//CheckPressed samples the pin from a "has this button just gone down"
//poll and reports whether the state changed
func (b *Button) CheckPressed() bool {
	return b.transition(InterpretPressed(b.asserted(), b.state))
}

//CheckHeld samples the pin from an "is this button still down" poll and
//reports whether the state changed
func (b *Button) CheckHeld() bool {
	return b.transition(InterpretHeld(b.asserted(), b.state))
}

func (b *Button) asserted() bool {
	return gpio.Asserted(b.pin.Read())
}

func (b *Button) transition(to State) bool {
	if !CanTransition(b.state, to) {
		return false
	}
	b.state = to
	return true
}

//State current logical state
func (b *Button) State() State { return b.state }

//Number numeric id
func (b *Button) Number() int { return b.number }

//Description human-readable label, possibly empty
func (b *Button) Description() string { return b.description }

//SetDescription replace the label
func (b *Button) SetDescription(description string) { b.description = description }

//KeyCode the assigned key code, if any
func (b *Button) KeyCode() (int, bool) { return b.keyCode, b.hasKeyCode }

//SetKeyCode assign a key code
func (b *Button) SetKeyCode(keyCode int) {
	b.keyCode = keyCode
	b.hasKeyCode = true
}

func (b *Button) String() string {
	if b.description == "" {
		return fmt.Sprintf("button %d", b.number)
	}
	return fmt.Sprintf("button %d (%s)", b.number, b.description)
}
