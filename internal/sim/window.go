package sim

import (
	"context"

	"github.com/hajimehoshi/ebiten/v2"
)

// RunWindow opens a desktop window showing s and feeding it mouse input. It
// blocks until the window closes or ctx is cancelled, and must be called
// from the main goroutine.
func RunWindow(ctx context.Context, s *Screen, title string, scale int) error {
	if scale < 1 {
		scale = 1
	}
	g := &game{ctx: ctx, s: s, scratch: make([]byte, len(s.pix))}
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(s.w*scale, s.h*scale)
	ebiten.SetTPS(60)
	return ebiten.RunGame(g)
}

type game struct {
	ctx     context.Context
	s       *Screen
	img     *ebiten.Image
	scratch []byte
}

func (g *game) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}
	x, y := ebiten.CursorPosition()
	down := ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	if ids := ebiten.AppendTouchIDs(nil); len(ids) > 0 {
		x, y = ebiten.TouchPosition(ids[0])
		down = true
	}
	g.s.SetPointer(x, y, down)
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	if g.img == nil {
		g.img = ebiten.NewImage(g.s.w, g.s.h)
		g.s.mu.Lock()
		g.s.changed = true
		g.s.mu.Unlock()
	}
	if g.s.copyIfChanged(g.scratch) {
		g.img.WritePixels(g.scratch)
	}
	screen.DrawImage(g.img, nil)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.s.w, g.s.h
}
