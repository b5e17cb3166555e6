package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xanderflood/arcadehub/pkg/gpio"
)

const (
	configType = "yaml"

	configKeyBackend       = "backend"
	configKeyPressInterval = "press_interval"
	configKeyHeldInterval  = "held_interval"

	defaultBackend       = gpio.BackendRPIO
	defaultPressInterval = 10 * time.Millisecond
	defaultHeldInterval  = 250 * time.Millisecond

	defaultPull   = "up"
	defaultActive = "low"
)

var (
	//ErrNoButtons the config does not declare any button
	ErrNoButtons = errors.New("no buttons configured")
	//ErrDuplicateNumber two buttons share a number
	ErrDuplicateNumber = errors.New("duplicate button number")
	//ErrDuplicatePin two lines share a pin
	ErrDuplicatePin = errors.New("pin used more than once")
	//ErrMissingPin a button has no pin
	ErrMissingPin = errors.New("button has no pin")
	//ErrInvalidInterval a polling interval is not positive
	ErrInvalidInterval = errors.New("polling intervals must be positive")
)

//Config hub configuration
type Config struct {
	Backend       string         `mapstructure:"backend"`
	PressInterval time.Duration  `mapstructure:"press_interval"`
	HeldInterval  time.Duration  `mapstructure:"held_interval"`
	Buttons       []ButtonConfig `mapstructure:"buttons"`
}

//ButtonConfig wiring and metadata for one button
type ButtonConfig struct {
	Number       int    `mapstructure:"number"`
	Description  string `mapstructure:"description"`
	Pin          string `mapstructure:"pin"`
	KeyCode      *int   `mapstructure:"key_code"`
	Pull         string `mapstructure:"pull"`
	Active       string `mapstructure:"active"`
	LampPin      string `mapstructure:"lamp_pin"`
	LampInverted bool   `mapstructure:"lamp_inverted"`
}

//PullMode the parsed pull setting, "up" when unset
func (b ButtonConfig) PullMode() (gpio.Pull, error) {
	if b.Pull == "" {
		return gpio.ParsePull(defaultPull)
	}
	return gpio.ParsePull(b.Pull)
}

//ActiveLevel the level the line reads while pushed, "low" when unset
func (b ButtonConfig) ActiveLevel() (gpio.State, error) {
	if b.Active == "" {
		return gpio.ParseState(defaultActive)
	}
	return gpio.ParseState(b.Active)
}

//Validate check the config for wiring mistakes
func (c *Config) Validate() error {
	if c.PressInterval <= 0 || c.HeldInterval <= 0 {
		return ErrInvalidInterval
	}
	if err := gpio.CheckBackend(c.Backend); err != nil {
		return err
	}
	if len(c.Buttons) == 0 {
		return ErrNoButtons
	}

	numbers := map[int]bool{}
	pins := map[string]bool{}
	for _, b := range c.Buttons {
		if numbers[b.Number] {
			return fmt.Errorf("%w: %d", ErrDuplicateNumber, b.Number)
		}
		numbers[b.Number] = true

		if b.Pin == "" {
			return fmt.Errorf("%w: %d", ErrMissingPin, b.Number)
		}
		for _, pin := range []string{b.Pin, b.LampPin} {
			if pin == "" {
				continue
			}
			if err := gpio.CheckPinName(c.Backend, pin); err != nil {
				return fmt.Errorf("button %d: %w", b.Number, err)
			}
			if pins[pin] {
				return fmt.Errorf("%w: %s", ErrDuplicatePin, pin)
			}
			pins[pin] = true
		}

		if _, err := b.PullMode(); err != nil {
			return fmt.Errorf("button %d: %w", b.Number, err)
		}
		if _, err := b.ActiveLevel(); err != nil {
			return fmt.Errorf("button %d: %w", b.Number, err)
		}
	}
	return nil
}

//Loader reads and watches the config file
type Loader struct {
	v      *viper.Viper
	logger *zap.SugaredLogger
}

//NewLoader a loader for the YAML file at path
func NewLoader(logger *zap.SugaredLogger, path string) *Loader {
	v := viper.New()
	v.SetConfigType(configType)
	v.SetConfigFile(path)

	v.SetDefault(configKeyBackend, defaultBackend)
	v.SetDefault(configKeyPressInterval, defaultPressInterval)
	v.SetDefault(configKeyHeldInterval, defaultHeldInterval)

	return &Loader{
		v:      v,
		logger: logger.Named("config"),
	}
}

//Load read, decode and validate the config file
func (l *Loader) Load() (*Config, error) {
	l.logger.Debugw("Loading config", "path", l.v.ConfigFileUsed())

	if err := l.v.ReadInConfig(); err != nil {
		l.logger.Warnw("Viper failed to read config", "error", err)
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := l.v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	l.logger.Infow("Loaded config",
		"backend", c.Backend,
		"buttons", len(c.Buttons),
		"pressInterval", c.PressInterval,
		"heldInterval", c.HeldInterval)

	return &c, nil
}

//Watch reload the config file whenever it is written or replaced and
//hand every config that loads and validates to onChange. Loading happens on
//viper's watcher goroutine, so Load must not be called concurrently once
//watching has started.
func (l *Loader) Watch(onChange func(*Config)) {
	l.logger.Debugw("Watching config file for changes", "path", l.v.ConfigFileUsed())

	l.v.OnConfigChange(func(event fsnotify.Event) {
		if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		l.logger.Debugw("Config file modified", "event", event)

		c, err := l.Load()
		if err != nil {
			l.logger.Warnw("Ignoring config change", "error", err)
			return
		}
		onChange(c)
	})
	l.v.WatchConfig()
}
