package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/xanderflood/arcadehub/pkg/gpio"
	"github.com/xanderflood/arcadehub/pkg/gpio/gpiotest"
)

var _ = Describe("module runtime", func() {
	var (
		provider *gpiotest.MockProvider
		mgr      *ManagerAgent
		server   *httptest.Server
	)

	BeforeEach(func() {
		provider = gpiotest.NewMockProvider()
		// released, since buttons default to active low
		provider.Pin("17").Hold(gpio.High)

		mgr = NewManagerAgent(zap.NewNop().Sugar(), provider)
		server = httptest.NewServer(buildMux(zap.NewNop().Sugar(), mgr))
	})

	AfterEach(func() {
		server.Close()
	})

	post := func(path string, body interface{}) *http.Response {
		bs, err := json.Marshal(body)
		Expect(err).ToNot(HaveOccurred())
		resp, err := http.Post(server.URL+path, "application/json", bytes.NewReader(bs))
		Expect(err).ToNot(HaveOccurred())
		return resp
	}

	act := func(module, action string, config interface{}) map[string]interface{} {
		resp := post("/act", map[string]interface{}{
			"module": module,
			"action": action,
			"config": config,
		})
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var out ActResponse
		Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
		if out.Result == nil {
			return nil
		}
		return out.Result.(map[string]interface{})
	}

	// the server goroutine touches pins under the manager lock
	hold := func(name string, level gpio.State) {
		mgr.Lock()
		defer mgr.Unlock()
		provider.Pin(name).Hold(level)
	}
	level := func(name string) gpio.State {
		mgr.Lock()
		defer mgr.Unlock()
		return provider.Pin(name).Level()
	}

	initialize := func() {
		resp := post("/initialize", map[string]interface{}{
			"modules": map[string]interface{}{
				"start": map[string]interface{}{
					"source": "button",
					"config": map[string]interface{}{
						"number":      1,
						"description": "Start",
						"pin":         "17",
						"key_code":    49,
					},
				},
				"start_lamp": map[string]interface{}{
					"source": "lamp",
					"config": map[string]interface{}{"pin": "27"},
				},
			},
		})
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var out InitializeResponse
		Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
		Expect(out.NumModules).To(Equal(2))
	}

	It("rejects non-POST requests", func() {
		resp, err := http.Get(server.URL + "/act")
		Expect(err).ToNot(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
	})

	It("rejects malformed bodies", func() {
		resp, err := http.Post(server.URL+"/initialize", "application/json", bytes.NewBufferString("{"))
		Expect(err).ToNot(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("404s on unknown sources and modules", func() {
		resp := post("/initialize", map[string]interface{}{
			"modules": map[string]interface{}{"x": map[string]interface{}{"source": "thermostat"}},
		})
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

		resp = post("/act", map[string]interface{}{"module": "x", "action": "state"})
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})

	It("fails initialization without a pin", func() {
		resp := post("/initialize", map[string]interface{}{
			"modules": map[string]interface{}{"b": map[string]interface{}{
				"source": "button",
				"config": map[string]interface{}{"number": 2},
			}},
		})
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
	})

	Context("with a button and a lamp", func() {
		BeforeEach(initialize)

		It("configures the button line with a pull-up", func() {
			mgr.Lock()
			defer mgr.Unlock()
			Expect(provider.Pulls["17"]).To(Equal(gpio.PullUp))
			Expect(provider.Pin("17").InputCalls).To(Equal(1))
			Expect(provider.Pin("27").Level()).To(Equal(gpio.Low))
		})

		It("reports the button state", func() {
			Expect(act("start", "state", nil)).To(Equal(map[string]interface{}{
				"number":      float64(1),
				"description": "Start",
				"key_code":    float64(49),
				"state":       "unpressed",
			}))
		})

		It("walks the button through a press", func() {
			Expect(act("start", "press_check", nil)).To(Equal(map[string]interface{}{
				"changed": false, "state": "unpressed",
			}))

			hold("17", gpio.Low)
			Expect(act("start", "press_check", nil)).To(Equal(map[string]interface{}{
				"changed": true, "state": "pressed",
			}))
			Expect(act("start", "held_check", nil)).To(Equal(map[string]interface{}{
				"changed": true, "state": "held",
			}))
			Expect(act("start", "held_check", nil)).To(Equal(map[string]interface{}{
				"changed": false, "state": "held",
			}))

			hold("17", gpio.High)
			Expect(act("start", "press_check", nil)).To(Equal(map[string]interface{}{
				"changed": true, "state": "unpressed",
			}))
		})

		It("drives the lamp", func() {
			act("start_lamp", "set", map[string]interface{}{"on": true})
			Expect(level("27")).To(Equal(gpio.High))
		})

		It("fails a lamp write the line rejects", func() {
			mgr.Lock()
			provider.Pin("27").WriteErr = errors.New("bus fault")
			mgr.Unlock()

			resp := post("/act", map[string]interface{}{
				"module": "start_lamp",
				"action": "set",
				"config": map[string]interface{}{"on": true},
			})
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
		})

		It("fails unknown actions", func() {
			resp := post("/act", map[string]interface{}{"module": "start", "action": "mash"})
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
		})

		It("turns lamps off when stopped", func() {
			act("start_lamp", "set", map[string]interface{}{"on": true})
			Expect(mgr.Stop()).To(Succeed())
			Expect(level("27")).To(Equal(gpio.Low))
			Expect(mgr.Modules).To(BeEmpty())
		})
	})
})
