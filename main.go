package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xanderflood/arcadehub/pkg/gpio"
)

func main() {
	app := cli.NewApp()
	app.Name = "arcadehub"
	app.Usage = "track arcade button presses on Raspberry Pi GPIO"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "Path to the YAML config file",
			Value: "config.yaml",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable development logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "poll",
			Usage:  "Poll the configured buttons and log every state change",
			Action: runPoll,
		},
		{
			Name:  "serve",
			Usage: "Expose buttons and lamps as modules over HTTP",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "backend",
					Usage: "GPIO backend, rpio or periph",
					Value: gpio.BackendRPIO,
				},
				cli.StringFlag{
					Name:  "listen",
					Usage: "Address to listen on",
					Value: "0.0.0.0:3141",
				},
			},
			Action: runServe,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "arcadehub:", err)
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed building logger: %w", err)
	}
	return logger.Sugar(), nil
}

func runServe(c *cli.Context) (err error) {
	logger, err := newLogger(c.GlobalBool("debug"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	sp, err := gpio.NewProvider(c.String("backend"))
	if err != nil {
		return err
	}

	mgr := NewManagerAgent(logger, sp)
	defer func() {
		err = multierr.Combine(err, mgr.Stop(), sp.Close())
	}()

	server := &http.Server{
		Addr:    c.String("listen"),
		Handler: buildMux(logger, mgr),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	served := make(chan error, 1)
	go func() {
		logger.Infow("Serving modules", "address", server.Addr)
		served <- server.ListenAndServe()
	}()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

////////////////////////
// The module runtime //
type Module interface {
	Initialize(sp ServiceProvider, config Binder) error
	Act(action string, body Binder) (interface{}, error)

	Stop() error
}

type ModuleFactory func() Module

var ModuleIndex = map[string]ModuleFactory{
	"button": func() Module { return &ButtonModule{} },
	"lamp":   func() Module { return &LampModule{} },
}

//ErrNoSuchModule the requested module has not been initialized
var ErrNoSuchModule = errors.New("no such module")

//ErrNoSuchSource the requested module source is not in ModuleIndex
var ErrNoSuchSource = errors.New("no such module source")

//ManagerAgent owns the initialized modules. Every call into a module
//holds the lock, so a button is never checked by two requests at once.
type ManagerAgent struct {
	Modules         map[string]Module
	ServiceProvider ServiceProvider

	logger *zap.SugaredLogger
	sync.Mutex
}

func NewManagerAgent(logger *zap.SugaredLogger, sp ServiceProvider) *ManagerAgent {
	return &ManagerAgent{
		Modules:         map[string]Module{},
		ServiceProvider: sp,
		logger:          logger.Named("manager"),
	}
}

func (a *ManagerAgent) InitializeModules(specs map[string]ModuleSpec) error {
	a.Lock()
	defer a.Unlock()

	for name, spec := range specs {
		factory, ok := ModuleIndex[spec.Source]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoSuchSource, spec.Source)
		}

		if old, ok := a.Modules[name]; ok {
			if err := old.Stop(); err != nil {
				a.logger.Warnw("Failed stopping replaced module", "module", name, "error", err)
			}
			delete(a.Modules, name)
		}

		mod := factory()
		if err := mod.Initialize(a.ServiceProvider, spec.Config); err != nil {
			return fmt.Errorf("failed to initialize module %s: %w", name, err)
		}
		a.Modules[name] = mod
		a.logger.Infow("Initialized module", "module", name, "source", spec.Source)
	}
	return nil
}

func (a *ManagerAgent) Act(module string, action string, body Binder) (interface{}, error) {
	a.Lock()
	defer a.Unlock()

	if mod, ok := a.Modules[module]; ok {
		return mod.Act(action, body)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSuchModule, module)
}

//Stop stops every module, returning all of their errors combined
func (a *ManagerAgent) Stop() error {
	a.Lock()
	defer a.Unlock()

	var err error
	for name, mod := range a.Modules {
		err = multierr.Append(err, mod.Stop())
		delete(a.Modules, name)
	}
	return err
}

////////////////
// HTTP Logic //

//Binder decodes a request fragment into a typed struct
type Binder interface {
	BindData(v interface{}) error
}

//JSONBinder a raw JSON fragment. An empty fragment binds nothing.
type JSONBinder json.RawMessage

func (b *JSONBinder) UnmarshalJSON(data []byte) error {
	*b = append((*b)[0:0], data...)
	return nil
}

func (b JSONBinder) BindData(v interface{}) error {
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed decoding module data: %w", err)
	}
	return nil
}

type InitializeRequest struct {
	Modules map[string]ModuleSpec `json:"modules"`
}
type ModuleSpec struct {
	Source string     `json:"source"`
	Config JSONBinder `json:"config"`
}
type InitializeResponse struct {
	NumModules int `json:"num_modules"`
}

type ActRequest struct {
	Module string     `json:"module"`
	Action string     `json:"action"`
	Config JSONBinder `json:"config"`
}
type ActResponse struct {
	Result interface{} `json:"result"`
}

func buildMux(logger *zap.SugaredLogger, mgr *ManagerAgent) http.Handler {
	logger = logger.Named("http")

	mux := http.NewServeMux()
	mux.Handle("/initialize", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req InitializeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warnw("Failed decoding body", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if err := mgr.InitializeModules(req.Modules); err != nil {
			logger.Warnw("Failed initializing modules", "error", err)
			if errors.Is(err, ErrNoSuchSource) {
				w.WriteHeader(http.StatusNotFound)
			} else {
				w.WriteHeader(http.StatusInternalServerError)
			}
			return
		}

		mgr.Lock()
		resp := InitializeResponse{NumModules: len(mgr.Modules)}
		mgr.Unlock()
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Warnw("Failed sending response", "error", err)
			return
		}
	}))
	mux.Handle("/act", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req ActRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warnw("Failed decoding body", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		result, err := mgr.Act(req.Module, req.Action, req.Config)
		if err != nil {
			logger.Warnw("Action failed", "module", req.Module, "action", req.Action, "error", err)
			if errors.Is(err, ErrNoSuchModule) {
				w.WriteHeader(http.StatusNotFound)
			} else {
				w.WriteHeader(http.StatusInternalServerError)
			}
			return
		}

		if err := json.NewEncoder(w).Encode(ActResponse{Result: result}); err != nil {
			logger.Warnw("Failed sending response", "error", err)
			return
		}
	}))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debugw("Request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		mux.ServeHTTP(w, r)
	})
}

//////////////////////////
// hardware interfacing //
type ServiceProvider = gpio.Provider
