package hw

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// XPT2046 control bytes: start bit, channel select, 12-bit differential mode.
const (
	xptReadX  = 0xD0
	xptReadY  = 0x90
	xptReadZ1 = 0xB0
	xptReadZ2 = 0xC0
)

// DefaultPressure is the minimum Z reading treated as a press.
const DefaultPressure = 350

// LevelReader is a GPIO input such as the XPT2046 PENIRQ line.
type LevelReader interface {
	Read() gpio.Level
}

// XPT2046 is a resistive touch controller on SPI.
type XPT2046 struct {
	conn      Tx
	irq       LevelReader
	Threshold int
	Samples   int
}

// NewXPT2046 wraps an SPI connection. irq may be nil, in which case every
// read polls the pressure channels.
func NewXPT2046(c Tx, irq LevelReader) *XPT2046 {
	return &XPT2046{conn: c, irq: irq, Threshold: DefaultPressure, Samples: 4}
}

// Raw returns the averaged 12-bit position while the panel is pressed.
func (t *XPT2046) Raw() (Point, bool, error) {
	// PENIRQ is active low.
	if t.irq != nil && t.irq.Read() == gpio.High {
		return Point{}, false, nil
	}

	z1, err := t.read(xptReadZ1)
	if err != nil {
		return Point{}, false, err
	}
	z2, err := t.read(xptReadZ2)
	if err != nil {
		return Point{}, false, err
	}
	if z1+4095-z2 < t.Threshold {
		return Point{}, false, nil
	}

	n := t.Samples
	if n < 1 {
		n = 1
	}
	var sx, sy int
	for i := 0; i < n; i++ {
		x, err := t.read(xptReadX)
		if err != nil {
			return Point{}, false, err
		}
		y, err := t.read(xptReadY)
		if err != nil {
			return Point{}, false, err
		}
		sx += x
		sy += y
	}
	return Point{X: sx / n, Y: sy / n}, true, nil
}

func (t *XPT2046) read(cmd byte) (int, error) {
	w := []byte{cmd, 0, 0}
	r := make([]byte, 3)
	if err := t.conn.Tx(w, r); err != nil {
		return 0, fmt.Errorf("xpt2046 read 0x%02X: %w", cmd, err)
	}
	return (int(r[1])<<8 | int(r[2])) >> 3, nil
}
