package button

import "fmt"

//State logical state of a momentary pushbutton
type State int

const (
	//UnPressed the button is up
	UnPressed State = iota
	//Pressed the button went down since the previous poll
	Pressed
	//Held the button has stayed down across polls
	Held
)

//States state names
var States = map[State]string{
	UnPressed: "unpressed",
	Pressed:   "pressed",
	Held:      "held",
}

func (s State) String() string {
	if name, ok := States[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

//CanTransition reports whether a button in state `from` may move to `to`.
//A mechanical button cannot re-enter the state it is in, and it cannot
//skip from UnPressed straight to Held.
func CanTransition(from, to State) bool {
	switch to {
	case UnPressed:
		return from == Pressed || from == Held
	case Pressed:
		return from == UnPressed
	case Held:
		return from == Pressed
	default:
		return false
	}
}

//InterpretPressed proposes the next state for an edge-detecting poll. A line
//that is still asserted while the button is already down escalates to Held
//rather than reporting a second press.
func InterpretPressed(asserted bool, current State) State {
	if !asserted {
		return UnPressed
	}
	if current == Pressed || current == Held {
		return Held
	}
	return Pressed
}

//InterpretHeld proposes the next state for a hold-detecting poll. Only a
//Pressed button with an asserted line moves; everything else stays put.
func InterpretHeld(asserted bool, current State) State {
	if asserted && current == Pressed {
		return Held
	}
	return current
}
