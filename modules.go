package main

import (
	"fmt"

	"github.com/xanderflood/arcadehub/pkg/button"
	"github.com/xanderflood/arcadehub/pkg/config"
	"github.com/xanderflood/arcadehub/pkg/gpio"
	"github.com/xanderflood/arcadehub/pkg/lamp"
)

////////////////////////
// The module library //
type ButtonModule struct {
	button *button.Button
}
type ButtonModuleConfig struct {
	Number      int    `json:"number"`
	Description string `json:"description"`
	Pin         string `json:"pin"`
	KeyCode     *int   `json:"key_code"`
	Pull        string `json:"pull"`
	Active      string `json:"active"`
}
type ButtonCheckResponse struct {
	Changed bool   `json:"changed"`
	State   string `json:"state"`
}
type ButtonStateResponse struct {
	Number      int    `json:"number"`
	Description string `json:"description,omitempty"`
	KeyCode     *int   `json:"key_code,omitempty"`
	State       string `json:"state"`
}

func (*ButtonModule) Stop() error { return nil }

func (m *ButtonModule) Initialize(sp ServiceProvider, binder Binder) error {
	var cfg = &ButtonModuleConfig{}
	if err := binder.BindData(cfg); err != nil {
		return err
	}
	if cfg.Pin == "" {
		return fmt.Errorf("`pin` is a required field for button %d", cfg.Number)
	}

	b, err := newButton(sp, config.ButtonConfig{
		Number:      cfg.Number,
		Description: cfg.Description,
		Pin:         cfg.Pin,
		KeyCode:     cfg.KeyCode,
		Pull:        cfg.Pull,
		Active:      cfg.Active,
	})
	if err != nil {
		return err
	}
	m.button = b

	return nil
}
func (m *ButtonModule) Act(action string, _ Binder) (interface{}, error) {
	switch action {
	case "press_check":
		changed := m.button.CheckPressed()
		return ButtonCheckResponse{Changed: changed, State: m.button.State().String()}, nil
	case "held_check":
		changed := m.button.CheckHeld()
		return ButtonCheckResponse{Changed: changed, State: m.button.State().String()}, nil
	case "state":
		resp := ButtonStateResponse{
			Number:      m.button.Number(),
			Description: m.button.Description(),
			State:       m.button.State().String(),
		}
		if code, ok := m.button.KeyCode(); ok {
			resp.KeyCode = &code
		}
		return resp, nil
	default:
		return nil, fmt.Errorf("no such action `%s`", action)
	}
}

type LampModule struct {
	lamp *lamp.LampAgent
}
type LampModuleConfig struct {
	Pin      string `json:"pin"`
	Inverted bool   `json:"inverted"`
}
type LampSetRequest struct {
	On bool `json:"on"`
}

func (m *LampModule) Stop() error {
	if m.lamp != nil {
		m.lamp.Set(false)
		return m.lamp.Err()
	}
	return nil
}

func (m *LampModule) Initialize(sp ServiceProvider, binder Binder) error {
	var cfg = &LampModuleConfig{}
	if err := binder.BindData(cfg); err != nil {
		return err
	}

	pin, err := sp.OutputPin(cfg.Pin)
	if err != nil {
		return err
	}
	m.lamp = lamp.New(pin, cfg.Inverted)
	m.lamp.Set(false)

	return m.lamp.Err()
}
func (m *LampModule) Act(action string, body Binder) (interface{}, error) {
	var request = &LampSetRequest{}
	if err := body.BindData(request); err != nil {
		return nil, err
	}

	switch action {
	case "set":
		m.lamp.Set(request.On)
		return nil, m.lamp.Err()
	default:
		return nil, fmt.Errorf("no such action `%s`", action)
	}
}

//newButton open the configured input line and build an UnPressed button
func newButton(sp gpio.Provider, cfg config.ButtonConfig) (*button.Button, error) {
	pull, err := cfg.PullMode()
	if err != nil {
		return nil, err
	}
	active, err := cfg.ActiveLevel()
	if err != nil {
		return nil, err
	}

	pin, err := sp.InputPin(cfg.Pin, pull)
	if err != nil {
		return nil, err
	}
	if active == gpio.Low {
		pin = gpio.ActiveLow(pin)
	}

	if cfg.KeyCode != nil {
		return button.NewWithKeyCode(cfg.Number, cfg.Description, pin, *cfg.KeyCode)
	}
	return button.New(cfg.Number, cfg.Description, pin)
}
