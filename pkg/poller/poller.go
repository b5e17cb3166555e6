package poller

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xanderflood/arcadehub/pkg/button"
	"github.com/xanderflood/arcadehub/pkg/lamp"
)

//ErrInvalidInterval returned by New for a non-positive polling interval
var ErrInvalidInterval = errors.New("polling intervals must be positive")

//DefaultBuffer size of the event channel
const DefaultBuffer = 64

//Check which advance operation produced an event
type Check int

const (
	//PressCheck edge-detecting poll
	PressCheck Check = iota
	//HeldCheck hold-detecting poll
	HeldCheck
)

func (c Check) String() string {
	if c == HeldCheck {
		return "held_check"
	}
	return "press_check"
}

//Event a button state change, in the shape a key dispatcher wants it
type Event struct {
	Number      int
	Description string
	KeyCode     int
	HasKeyCode  bool

	From  button.State
	To    button.State
	Check Check
	At    time.Time
}

//Binding a button and the lamp that mirrors it. Lamp may be nil.
type Binding struct {
	Button *button.Button
	Lamp   lamp.Lamp
}

//Poller drives a set of buttons from a single goroutine
type Poller struct {
	bindings      []Binding
	pressInterval time.Duration
	heldInterval  time.Duration

	events chan Event
	logger *zap.SugaredLogger
	now    func() time.Time
}

//New a poller running press checks every pressInterval and held checks
//every heldInterval
func New(logger *zap.SugaredLogger, pressInterval, heldInterval time.Duration, bindings ...Binding) (*Poller, error) {
	return NewWithBuffer(logger, DefaultBuffer, pressInterval, heldInterval, bindings...)
}

//NewWithBuffer like New, holding at most buffer unread events before Run
//starts dropping them
func NewWithBuffer(logger *zap.SugaredLogger, buffer int, pressInterval, heldInterval time.Duration, bindings ...Binding) (*Poller, error) {
	if pressInterval <= 0 || heldInterval <= 0 {
		return nil, ErrInvalidInterval
	}
	if buffer < 0 {
		buffer = 0
	}

	return &Poller{
		bindings:      bindings,
		pressInterval: pressInterval,
		heldInterval:  heldInterval,
		events:        make(chan Event, buffer),
		logger:        logger.Named("poller"),
		now:           time.Now,
	}, nil
}

//Events state changes published by Run. The channel is closed when Run
//returns.
func (p *Poller) Events() <-chan Event {
	return p.events
}

//PollPressed run one press check over every button
func (p *Poller) PollPressed() []Event {
	return p.poll(PressCheck, (*button.Button).CheckPressed)
}

//PollHeld run one held check over every button
func (p *Poller) PollHeld() []Event {
	return p.poll(HeldCheck, (*button.Button).CheckHeld)
}

func (p *Poller) poll(check Check, advance func(*button.Button) bool) []Event {
	var events []Event
	for _, b := range p.bindings {
		from := b.Button.State()
		if !advance(b.Button) {
			continue
		}

		if b.Lamp != nil {
			b.Lamp.Show(b.Button.State())
		}

		code, ok := b.Button.KeyCode()
		events = append(events, Event{
			Number:      b.Button.Number(),
			Description: b.Button.Description(),
			KeyCode:     code,
			HasKeyCode:  ok,
			From:        from,
			To:          b.Button.State(),
			Check:       check,
			At:          p.now(),
		})
	}
	return events
}

//Run poll until ctx is cancelled. Run must only be called once.
func (p *Poller) Run(ctx context.Context) error {
	defer close(p.events)
	defer p.lampsOff()

	press := time.NewTicker(p.pressInterval)
	defer press.Stop()
	held := time.NewTicker(p.heldInterval)
	defer held.Stop()

	p.logger.Infow("Polling buttons",
		"buttons", len(p.bindings),
		"pressInterval", p.pressInterval,
		"heldInterval", p.heldInterval)

	for {
		select {
		case <-ctx.Done():
			p.logger.Debugw("Stopped polling", "reason", ctx.Err())
			return ctx.Err()
		case <-press.C:
			p.publish(p.PollPressed())
		case <-held.C:
			p.publish(p.PollHeld())
		}
	}
}

func (p *Poller) publish(events []Event) {
	for _, e := range events {
		select {
		case p.events <- e:
		default:
			p.logger.Warnw("Event channel full, dropping event",
				"button", e.Number, "from", e.From, "to", e.To)
		}
	}
}

func (p *Poller) lampsOff() {
	for _, b := range p.bindings {
		if b.Lamp != nil {
			b.Lamp.Set(false)
		}
	}
}
