package gpio

import (
	"fmt"
	"strings"

	rpio "github.com/stianeikeland/go-rpio"
)

//State IO pin state
type State = rpio.State

//States state names
var States = map[State]string{
	Low:  "low",
	High: "high",
}

const (
	//Low signal
	Low = rpio.Low

	//High signal
	High = rpio.High
)

//ParseState parse a state from a string
func ParseState(s string) (State, error) {
	if strings.ToLower(s) == States[Low] {
		return Low, nil
	} else if strings.ToLower(s) == States[High] {
		return High, nil
	}
	return State(0), fmt.Errorf("unexpected string %s, expected HIGH or LOW", s)
}

//Pull internal resistor configuration for an input line
type Pull int

const (
	//PullNone leave the line floating
	PullNone Pull = iota
	//PullUp pull the line to VCC, a pushed button grounds it
	PullUp
	//PullDown pull the line to ground, a pushed button drives it high
	PullDown
)

//Pulls pull names
var Pulls = map[Pull]string{
	PullNone: "none",
	PullUp:   "up",
	PullDown: "down",
}

func (p Pull) String() string {
	return Pulls[p]
}

//ParsePull parse a pull mode from a string
func ParsePull(s string) (Pull, error) {
	for p, name := range Pulls {
		if strings.ToLower(s) == name {
			return p, nil
		}
	}
	return PullNone, fmt.Errorf("unexpected string %s, expected NONE, UP or DOWN", s)
}

//OutputPin minimal interface for a GPIO pin
//go:generate counterfeiter . OutputPin
type OutputPin interface {
	Output()
	High()
	Low()
}

//InputPin minimal interface for sampling a GPIO line. Input must
//be called before the first Read.
//go:generate counterfeiter . InputPin
type InputPin interface {
	Input() error
	Read() State
}

//Pin minimal interface for a GPIO pin
//go:generate counterfeiter . Pin
type Pin interface {
	OutputPin
	InputPin
}

//WriteErrorer an output pin that records whether its last write failed
type WriteErrorer interface {
	Err() error
}

//Set sets the state of the pin
func Set(pin OutputPin, high bool) {
	pin.Output()
	if high {
		pin.High()
	} else {
		pin.Low()
	}
}

//Asserted reports whether a sample counts as an asserted line
func Asserted(s State) bool {
	return s != Low
}

//ActiveLow wraps an input pin whose line is pulled low when asserted, so
//that it reads High while the button is down.
func ActiveLow(pin InputPin) InputPin {
	return activeLow{pin}
}

type activeLow struct {
	InputPin
}

func (p activeLow) Read() State {
	if p.InputPin.Read() == Low {
		return High
	}
	return Low
}
