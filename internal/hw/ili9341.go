package hw

import (
	"fmt"
	"image"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// ILI9341 command set used by the driver.
const (
	cmdSoftReset   = 0x01
	cmdSleepOut    = 0x11
	cmdNormalOn    = 0x13
	cmdGammaSet    = 0x26
	cmdDisplayOn   = 0x29
	cmdColumnAddr  = 0x2A
	cmdPageAddr    = 0x2B
	cmdMemoryWrite = 0x2C
	cmdMADCTL      = 0x36
	cmdPixelFormat = 0x3A
	cmdFrameCtrl   = 0xB1
)

// madctlPortrait mirrors X with BGR order, giving a 240x320 portrait frame
// with the connector at the bottom.
const madctlPortrait = 0x48

// ILI9341 is a 240x320 RGB565 panel on a 4-wire SPI bus. It implements
// ui.Panel.
type ILI9341 struct {
	conn  Tx
	dc    OutPin
	rst   OutPin
	maxTx int
	sleep func(time.Duration)
	buf   []byte
}

// NewILI9341 wraps an SPI connection and the DC/reset pins. rst may be nil
// when the reset line is tied high.
func NewILI9341(c Tx, dc, rst OutPin) *ILI9341 {
	return &ILI9341{
		conn:  c,
		dc:    dc,
		rst:   rst,
		maxTx: maxTx(c),
		sleep: time.Sleep,
	}
}

// Init resets the controller and configures portrait RGB565 output.
func (d *ILI9341) Init() error {
	if d.rst != nil {
		steps := []struct {
			level gpio.Level
			wait  time.Duration
		}{
			{gpio.High, 5 * time.Millisecond},
			{gpio.Low, 20 * time.Millisecond},
			{gpio.High, 150 * time.Millisecond},
		}
		for _, s := range steps {
			if err := d.rst.Out(s.level); err != nil {
				return fmt.Errorf("panel reset: %w", err)
			}
			d.sleep(s.wait)
		}
	}

	seq := []struct {
		cmd  byte
		data []byte
		wait time.Duration
	}{
		{cmdSoftReset, nil, 150 * time.Millisecond},
		{cmdSleepOut, nil, 120 * time.Millisecond},
		{cmdPixelFormat, []byte{0x55}, 0},
		{cmdMADCTL, []byte{madctlPortrait}, 0},
		{cmdFrameCtrl, []byte{0x00, 0x18}, 0},
		{cmdGammaSet, []byte{0x01}, 0},
		{cmdNormalOn, nil, 0},
		{cmdDisplayOn, nil, 20 * time.Millisecond},
	}
	for _, s := range seq {
		if err := d.command(s.cmd, s.data...); err != nil {
			return fmt.Errorf("panel init 0x%02X: %w", s.cmd, err)
		}
		if s.wait > 0 {
			d.sleep(s.wait)
		}
	}
	return nil
}

// Flush writes rect of the framebuffer to panel memory.
func (d *ILI9341) Flush(pixels []uint16, stride int, rect image.Rectangle) error {
	if rect.Empty() {
		return nil
	}
	x0, y0 := rect.Min.X, rect.Min.Y
	x1, y1 := rect.Max.X-1, rect.Max.Y-1
	if err := d.command(cmdColumnAddr, byte(x0>>8), byte(x0), byte(x1>>8), byte(x1)); err != nil {
		return err
	}
	if err := d.command(cmdPageAddr, byte(y0>>8), byte(y0), byte(y1>>8), byte(y1)); err != nil {
		return err
	}
	if err := d.command(cmdMemoryWrite); err != nil {
		return err
	}

	n := rect.Dx() * rect.Dy() * 2
	if cap(d.buf) < n {
		d.buf = make([]byte, n)
	}
	buf := d.buf[:n]
	i := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		row := pixels[y*stride+rect.Min.X : y*stride+rect.Max.X]
		for _, p := range row {
			buf[i] = byte(p >> 8)
			buf[i+1] = byte(p)
			i += 2
		}
	}
	return d.data(buf)
}

func (d *ILI9341) command(cmd byte, args ...byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.conn.Tx([]byte{cmd}, nil); err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	return d.data(args)
}

// data sends b with DC high, split into transfers the bus accepts.
func (d *ILI9341) data(b []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(b) > 0 {
		n := len(b)
		if n > d.maxTx {
			n = d.maxTx
		}
		if err := d.conn.Tx(b[:n], nil); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}
