// Package hw drives the keypad hardware over periph.io: the ILI9341 panel,
// the XPT2046 and GT1151 touch controllers, touch calibration and process
// restarts.
package hw

import (
	"fmt"
	"io"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Tx is the half of conn.Conn the drivers need. spi.Conn and *i2c.Dev both
// satisfy it.
type Tx interface {
	Tx(w, r []byte) error
}

// OutPin is a GPIO output such as the panel DC and reset lines.
type OutPin interface {
	Out(l gpio.Level) error
}

// Init loads the periph host drivers. It must run before any Open call.
func Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}
	return nil
}

// OpenSPI opens an SPI port and connects at khz in mode 0.
func OpenSPI(name string, khz int) (spi.Conn, io.Closer, error) {
	port, err := spireg.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("open spi %q: %w", name, err)
	}
	c, err := port.Connect(physic.Frequency(khz)*physic.KiloHertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, nil, fmt.Errorf("connect spi %q: %w", name, err)
	}
	return c, port, nil
}

// OpenI2C opens an I2C bus and returns the device at addr.
func OpenI2C(bus string, addr uint16) (*i2c.Dev, io.Closer, error) {
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, nil, fmt.Errorf("open i2c %q: %w", bus, err)
	}
	return &i2c.Dev{Bus: b, Addr: addr}, b, nil
}

// Pin looks up a GPIO by name, e.g. "GPIO25".
func Pin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio %q not found", name)
	}
	return p, nil
}

// maxTx returns the largest single transfer c accepts.
func maxTx(c any) int {
	if l, ok := c.(conn.Limits); ok {
		if n := l.MaxTxSize(); n > 0 {
			return n
		}
	}
	return defaultMaxTx
}

const defaultMaxTx = 4096

// OpenILI9341 connects the panel on an SPI port with its DC and reset pins
// and runs the init sequence. rstPin may be empty.
func OpenILI9341(port string, khz int, dcPin, rstPin string) (*ILI9341, io.Closer, error) {
	c, closer, err := OpenSPI(port, khz)
	if err != nil {
		return nil, nil, err
	}
	dc, err := Pin(dcPin)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	var rst OutPin
	if rstPin != "" {
		p, err := Pin(rstPin)
		if err != nil {
			closer.Close()
			return nil, nil, err
		}
		rst = p
	}
	panel := NewILI9341(c, dc, rst)
	if err := panel.Init(); err != nil {
		closer.Close()
		return nil, nil, err
	}
	return panel, closer, nil
}

// OpenXPT2046 connects the resistive controller. The chip tops out at
// 2.5 MHz so the port runs at 2 MHz. irqPin may be empty.
func OpenXPT2046(port, irqPin string) (*XPT2046, io.Closer, error) {
	c, closer, err := OpenSPI(port, 2000)
	if err != nil {
		return nil, nil, err
	}
	var irq LevelReader
	if irqPin != "" {
		p, err := Pin(irqPin)
		if err != nil {
			closer.Close()
			return nil, nil, err
		}
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			closer.Close()
			return nil, nil, fmt.Errorf("configure %s: %w", irqPin, err)
		}
		irq = p
	}
	return NewXPT2046(c, irq), closer, nil
}

// OpenGT1151 opens the capacitive controller on an I2C bus.
func OpenGT1151(bus string, w, h int) (*GT1151, io.Closer, error) {
	dev, closer, err := OpenI2C(bus, GT1151Addr)
	if err != nil {
		return nil, nil, err
	}
	return NewGT1151(dev, w, h), closer, nil
}
