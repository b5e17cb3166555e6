package gpiotest

import (
	"github.com/xanderflood/arcadehub/pkg/gpio"
)

//PinCheck runs when the pin is configured as an input
type PinCheck func() error

//MockPin a scripted gpio.Pin. Reads return the queued levels in order and
//keep returning the last one once the queue runs out.
type MockPin struct {
	index  int
	reads  int
	levels []gpio.State
	checks []PinCheck

	InputCalls int
	Outputs    []gpio.State
	WriteErr   error
}

var _ gpio.Pin = (*MockPin)(nil)

//NewMockPin a pin that will read the given levels
func NewMockPin(levels ...gpio.State) *MockPin {
	return &MockPin{levels: levels}
}

//Queue append levels for future reads
func (p *MockPin) Queue(levels ...gpio.State) {
	p.levels = append(p.levels, levels...)
}

//Hold drop any queued levels and read s from now on
func (p *MockPin) Hold(s gpio.State) {
	p.levels = append(p.levels[:p.index], s)
}

//OnInput register a check to run on the next Input call
func (p *MockPin) OnInput(check PinCheck) {
	p.checks = append(p.checks, check)
}

//Input gpio.InputPin
func (p *MockPin) Input() error {
	p.InputCalls++
	if len(p.checks) == 0 {
		return nil
	}
	check := p.checks[0]
	p.checks = p.checks[1:]
	return check()
}

//Read gpio.InputPin
func (p *MockPin) Read() gpio.State {
	p.reads++
	if len(p.levels) == 0 {
		return gpio.Low
	}
	if p.index >= len(p.levels) {
		return p.levels[len(p.levels)-1]
	}
	s := p.levels[p.index]
	p.index++
	return s
}

//Reads how many times the pin has been sampled
func (p *MockPin) Reads() int {
	return p.reads
}

//Output gpio.OutputPin
func (p *MockPin) Output() {}

//High gpio.OutputPin
func (p *MockPin) High() { p.Outputs = append(p.Outputs, gpio.High) }

//Low gpio.OutputPin
func (p *MockPin) Low() { p.Outputs = append(p.Outputs, gpio.Low) }

//Err gpio.WriteErrorer, reports WriteErr
func (p *MockPin) Err() error { return p.WriteErr }

//Level the last level written, Low if nothing was written
func (p *MockPin) Level() gpio.State {
	if len(p.Outputs) == 0 {
		return gpio.Low
	}
	return p.Outputs[len(p.Outputs)-1]
}

//MockProvider a gpio.Provider handing out MockPins by name
type MockProvider struct {
	Pins   map[string]*MockPin
	Pulls  map[string]gpio.Pull
	Closed bool
}

//NewMockProvider an empty provider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Pins:  map[string]*MockPin{},
		Pulls: map[string]gpio.Pull{},
	}
}

//Pin the mock behind name, created on first use
func (m *MockProvider) Pin(name string) *MockPin {
	if pin, ok := m.Pins[name]; ok {
		return pin
	}
	m.Pins[name] = NewMockPin()
	return m.Pins[name]
}

//InputPin gpio.Provider
func (m *MockProvider) InputPin(name string, pull gpio.Pull) (gpio.InputPin, error) {
	m.Pulls[name] = pull
	return m.Pin(name), nil
}

//OutputPin gpio.Provider
func (m *MockProvider) OutputPin(name string) (gpio.OutputPin, error) {
	return m.Pin(name), nil
}

//Close gpio.Provider
func (m *MockProvider) Close() error {
	m.Closed = true
	return nil
}
