package button_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/xanderflood/arcadehub/pkg/button"
	"github.com/xanderflood/arcadehub/pkg/gpio"
	"github.com/xanderflood/arcadehub/pkg/gpio/gpiotest"
)

var _ = Describe("Button", func() {
	var (
		pin *gpiotest.MockPin
		btn *button.Button
	)

	BeforeEach(func() {
		pin = gpiotest.NewMockPin()

		var err error
		btn, err = button.New(3, "Player 1 Start", pin)
		Expect(err).ToNot(HaveOccurred())
	})

	press := func() {
		pin.Hold(gpio.High)
		Expect(btn.CheckPressed()).To(BeTrue())
		Expect(btn.State()).To(Equal(button.Pressed))
	}
	hold := func() {
		press()
		Expect(btn.CheckHeld()).To(BeTrue())
		Expect(btn.State()).To(Equal(button.Held))
	}

	Describe("construction", func() {
		It("starts UnPressed with its pin configured as input", func() {
			Expect(btn.State()).To(Equal(button.UnPressed))
			Expect(pin.InputCalls).To(Equal(1))
			Expect(pin.Reads()).To(Equal(0))
		})

		It("carries its metadata", func() {
			Expect(btn.Number()).To(Equal(3))
			Expect(btn.Description()).To(Equal("Player 1 Start"))
			_, ok := btn.KeyCode()
			Expect(ok).To(BeFalse())
			Expect(btn.String()).To(Equal("button 3 (Player 1 Start)"))
		})

		It("accepts a key code", func() {
			btn, err := button.NewWithKeyCode(4, "", gpiotest.NewMockPin(), '1')
			Expect(err).ToNot(HaveOccurred())
			code, ok := btn.KeyCode()
			Expect(ok).To(BeTrue())
			Expect(code).To(Equal(int('1')))
			Expect(btn.String()).To(Equal("button 4"))
		})

		It("fails when the pin cannot be configured", func() {
			bad := gpiotest.NewMockPin()
			bad.OnInput(func() error { return errors.New("pin busy") })
			_, err := button.New(5, "", bad)
			Expect(err).To(MatchError(ContainSubstring("pin busy")))
		})
	})

	Describe("SetPin", func() {
		It("configures the new pin before sampling it", func() {
			other := gpiotest.NewMockPin(gpio.High)
			Expect(btn.SetPin(other)).To(Succeed())
			Expect(other.InputCalls).To(Equal(1))

			Expect(btn.CheckPressed()).To(BeTrue())
			Expect(other.Reads()).To(Equal(1))
			Expect(pin.Reads()).To(Equal(0))
		})

		It("keeps the old pin when configuration fails", func() {
			other := gpiotest.NewMockPin(gpio.High)
			other.OnInput(func() error { return errors.New("no such line") })
			Expect(btn.SetPin(other)).ToNot(Succeed())

			btn.CheckPressed()
			Expect(other.Reads()).To(Equal(0))
			Expect(pin.Reads()).To(Equal(1))
		})
	})

	It("updates metadata through setters without touching state", func() {
		press()
		btn.SetDescription("Coin")
		btn.SetKeyCode('5')
		Expect(btn.Description()).To(Equal("Coin"))
		code, _ := btn.KeyCode()
		Expect(code).To(Equal(int('5')))
		Expect(btn.State()).To(Equal(button.Pressed))
	})

	Describe("from UnPressed", func() {
		It("stays UnPressed when the line is released", func() {
			pin.Hold(gpio.Low)
			Expect(btn.CheckPressed()).To(BeFalse())
			Expect(btn.State()).To(Equal(button.UnPressed))
		})

		It("becomes Pressed on a fresh press", func() {
			press()
		})

		It("cannot reach Held through a held check", func() {
			pin.Hold(gpio.High)
			Expect(btn.CheckHeld()).To(BeFalse())
			Expect(btn.State()).To(Equal(button.UnPressed))
		})

		It("samples the pin once per check", func() {
			btn.CheckPressed()
			btn.CheckHeld()
			Expect(pin.Reads()).To(Equal(2))
		})
	})

	Describe("from Pressed", func() {
		BeforeEach(press)

		It("becomes Held through a held check", func() {
			Expect(btn.CheckHeld()).To(BeTrue())
			Expect(btn.State()).To(Equal(button.Held))
		})

		It("escalates to Held when a pressed check sees the line still down", func() {
			Expect(btn.CheckPressed()).To(BeTrue())
			Expect(btn.State()).To(Equal(button.Held))
		})

		It("returns to UnPressed on release", func() {
			pin.Hold(gpio.Low)
			Expect(btn.CheckPressed()).To(BeTrue())
			Expect(btn.State()).To(Equal(button.UnPressed))
		})

		It("ignores a held check after release", func() {
			pin.Hold(gpio.Low)
			Expect(btn.CheckHeld()).To(BeFalse())
			Expect(btn.State()).To(Equal(button.Pressed))
		})
	})

	Describe("from Held", func() {
		BeforeEach(hold)

		It("stays Held when a pressed check sees the line still down", func() {
			Expect(btn.CheckPressed()).To(BeFalse())
			Expect(btn.State()).To(Equal(button.Held))
		})

		It("never changes on repeated held checks", func() {
			for i := 0; i < 10; i++ {
				Expect(btn.CheckHeld()).To(BeFalse())
			}
			Expect(btn.State()).To(Equal(button.Held))
		})

		It("returns to UnPressed on release", func() {
			pin.Hold(gpio.Low)
			Expect(btn.CheckPressed()).To(BeTrue())
			Expect(btn.State()).To(Equal(button.UnPressed))
		})
	})

	It("cycles through a full press", func() {
		pin.Queue(gpio.High, gpio.High, gpio.High, gpio.Low, gpio.High)

		var seen []button.State
		for _, check := range []func() bool{btn.CheckPressed, btn.CheckHeld, btn.CheckPressed, btn.CheckPressed, btn.CheckPressed} {
			check()
			seen = append(seen, btn.State())
		}
		Expect(seen).To(Equal([]button.State{
			button.Pressed, button.Held, button.Held, button.UnPressed, button.Pressed,
		}))
	})
})
