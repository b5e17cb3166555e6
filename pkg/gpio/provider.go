package gpio

import (
	"errors"
	"fmt"
	"strconv"

	rpio "github.com/stianeikeland/go-rpio"
	pgpio "periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

//Backend names understood by NewProvider
const (
	BackendRPIO   = "rpio"
	BackendPeriph = "periph"
)

//ErrUnknownBackend returned by NewProvider for an unsupported backend name
var ErrUnknownBackend = errors.New("unknown gpio backend")

//Provider hands out pins by name
type Provider interface {
	InputPin(name string, pull Pull) (InputPin, error)
	OutputPin(name string) (OutputPin, error)

	Close() error
}

//NewProvider opens the named backend
func NewProvider(backend string) (Provider, error) {
	switch backend {
	case BackendRPIO:
		if err := Setup(); err != nil {
			return nil, fmt.Errorf("failed mapping gpio memory: %w", err)
		}
		return &RPIOProvider{}, nil
	case BackendPeriph:
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("failed initializing periph.io host: %w", err)
		}
		return &PeriphProvider{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
}

//CheckBackend reports whether NewProvider understands backend
func CheckBackend(backend string) error {
	switch backend {
	case BackendRPIO, BackendPeriph:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
}

//CheckPinName reports whether name can address a line on backend. Periph
//names are only resolved once the host is initialized, so any non-empty
//name passes for it.
func CheckPinName(backend, name string) error {
	switch backend {
	case BackendRPIO:
		_, err := parseBCM(name)
		return err
	case BackendPeriph:
		if name == "" {
			return errors.New("empty pin name")
		}
		return nil
	default:
		return CheckBackend(backend)
	}
}

//Setup initialize memory buffers for GPIO
func Setup() error {
	return rpio.Open()
}

////////////
// go-rpio //

//RPIOProvider names pins by their BCM number
type RPIOProvider struct{}

//InputPin look up an input line
func (RPIOProvider) InputPin(name string, pull Pull) (InputPin, error) {
	pin, err := parseBCM(name)
	if err != nil {
		return nil, err
	}
	return &RPIOPin{Pin: pin, Pull: pull}, nil
}

//OutputPin look up an output line
func (RPIOProvider) OutputPin(name string) (OutputPin, error) {
	pin, err := parseBCM(name)
	if err != nil {
		return nil, err
	}
	return &RPIOPin{Pin: pin}, nil
}

//Close unmap gpio memory
func (RPIOProvider) Close() error {
	return rpio.Close()
}

func parseBCM(name string) (rpio.Pin, error) {
	n, err := strconv.Atoi(name)
	if err != nil || n < 0 || n > 53 {
		return 0, fmt.Errorf("invalid pin `%s`, expected a BCM number between 0 and 53", name)
	}
	return rpio.Pin(n), nil
}

var (
	_ Pin = (*RPIOPin)(nil)
	_ Pin = (*PeriphPin)(nil)
)

//RPIOPin a go-rpio pin with a pull mode applied on Input
type RPIOPin struct {
	rpio.Pin
	Pull Pull
}

//Input switch the pin to input mode and apply the pull resistor
func (p *RPIOPin) Input() error {
	p.Pin.Input()
	switch p.Pull {
	case PullUp:
		p.Pin.PullUp()
	case PullDown:
		p.Pin.PullDown()
	default:
		p.Pin.PullOff()
	}
	return nil
}

////////////
// periph //

//PeriphProvider names pins through the periph.io registry
type PeriphProvider struct{}

//InputPin look up an input line
func (PeriphProvider) InputPin(name string, pull Pull) (InputPin, error) {
	pin, err := byName(name)
	if err != nil {
		return nil, err
	}
	return &PeriphPin{PinIO: pin, Pull: pull}, nil
}

//OutputPin look up an output line
func (PeriphProvider) OutputPin(name string) (OutputPin, error) {
	pin, err := byName(name)
	if err != nil {
		return nil, err
	}
	return &PeriphPin{PinIO: pin}, nil
}

//Close nothing to release for periph
func (PeriphProvider) Close() error { return nil }

func byName(name string) (pgpio.PinIO, error) {
	// Use gpioreg GPIO pin registry to find a GPIO pin by name.
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("failed to find pin `%s`", name)
	}
	return pin, nil
}

//PeriphPin adapts a periph.io pin to this package's interfaces
type PeriphPin struct {
	PinIO pgpio.PinIO
	Pull  Pull

	err error
}

//Input configure the line as an input without edge detection
func (p *PeriphPin) Input() error {
	pull := pgpio.Float
	switch p.Pull {
	case PullUp:
		pull = pgpio.PullUp
	case PullDown:
		pull = pgpio.PullDown
	}
	if err := p.PinIO.In(pull, pgpio.NoEdge); err != nil {
		return fmt.Errorf("failed configuring %s as input: %w", p.PinIO, err)
	}
	return nil
}

//Read sample the line
func (p *PeriphPin) Read() State {
	if p.PinIO.Read() == pgpio.High {
		return High
	}
	return Low
}

//Output output pins are configured by the first write
func (p *PeriphPin) Output() {}

//High drive the line high
func (p *PeriphPin) High() { p.err = p.PinIO.Out(pgpio.High) }

//Low drive the line low
func (p *PeriphPin) Low() { p.err = p.PinIO.Out(pgpio.Low) }

//Err the error from the last write, nil if it succeeded
func (p *PeriphPin) Err() error { return p.err }
