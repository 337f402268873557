package peripherals

import (
	"sync"

	"gochip8/pkg/cpu"
)

// Headless is a display that keeps its own copy of the frame and never
// renders it. It backs the root runner, the e2e tests and the terminal
// renderer.
type Headless struct {
	mu      sync.Mutex
	frame   cpu.Framebuffer
	flushes int
	dirty   bool
}

func NewHeadless() *Headless {
	return &Headless{}
}

func (h *Headless) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frame.Clear()
	h.dirty = true
}

// Present applies diffs and reports whether any lit pixel was turned off.
// Pixels outside the screen are ignored.
func (h *Headless) Present(diffs []cpu.Pixel) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	collision := false
	for _, p := range diffs {
		if p.X < 0 || p.X >= cpu.ScreenWidth || p.Y < 0 || p.Y >= cpu.ScreenHeight {
			continue
		}
		if h.frame[p.Y][p.X] && !p.On {
			collision = true
		}
		h.frame[p.Y][p.X] = p.On
		h.dirty = true
	}
	return collision
}

func (h *Headless) Flush() {
	h.mu.Lock()
	h.flushes++
	h.mu.Unlock()
}

// Flushes returns how many frames have been published.
func (h *Headless) Flushes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.flushes
}

// Frame returns a copy of the current frame.
func (h *Headless) Frame() cpu.Framebuffer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frame
}

// takeDirty returns the frame if it changed since the last call.
func (h *Headless) takeDirty() (cpu.Framebuffer, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.dirty {
		return cpu.Framebuffer{}, false
	}
	h.dirty = false
	return h.frame, true
}

func (h *Headless) String() string {
	f := h.Frame()
	return f.String()
}
