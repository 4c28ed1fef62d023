package hw

import (
	"fmt"
)

// GT1151Addr is the controller's I2C address.
const GT1151Addr = 0x14

const (
	gtRegStatus = 0x814E
	gtRegPoints = 0x814F
)

// GT1151 is a capacitive touch controller on I2C.
type GT1151 struct {
	dev  Tx
	w, h int
}

// NewGT1151 wraps the I2C device. Points outside w x h are dropped.
func NewGT1151(dev Tx, w, h int) *GT1151 {
	return &GT1151{dev: dev, w: w, h: h}
}

// Raw returns the first reported touch point.
func (g *GT1151) Raw() (Point, bool, error) {
	status, err := g.read(gtRegStatus, 1)
	if err != nil {
		return Point{}, false, err
	}
	if status[0]&0x80 == 0 {
		return Point{}, false, nil
	}
	count := int(status[0] & 0x0F)
	if count < 1 || count > 5 {
		_ = g.write(gtRegStatus, 0x00)
		return Point{}, false, nil
	}
	data, err := g.read(gtRegPoints, count*8)
	if err != nil {
		return Point{}, false, err
	}
	if err := g.write(gtRegStatus, 0x00); err != nil {
		return Point{}, false, err
	}
	x := int(data[1]) | int(data[2])<<8
	y := int(data[3]) | int(data[4])<<8
	if x >= g.w || y >= g.h {
		return Point{}, false, nil
	}
	return Point{X: x, Y: y}, true, nil
}

func (g *GT1151) read(reg uint16, n int) ([]byte, error) {
	w := []byte{byte(reg >> 8), byte(reg & 0xFF)}
	r := make([]byte, n)
	if err := g.dev.Tx(w, r); err != nil {
		return nil, fmt.Errorf("gt1151 read 0x%04X: %w", reg, err)
	}
	return r, nil
}

func (g *GT1151) write(reg uint16, b byte) error {
	w := []byte{byte(reg >> 8), byte(reg & 0xFF), b}
	if err := g.dev.Tx(w, nil); err != nil {
		return fmt.Errorf("gt1151 write 0x%04X: %w", reg, err)
	}
	return nil
}
