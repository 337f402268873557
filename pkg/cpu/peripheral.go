package cpu

// Pixel is one frame buffer cell changed by a draw.
type Pixel struct {
	X, Y int
	On   bool
}

// Display receives frame buffer updates. The CPU owns the authoritative
// frame buffer; a Display mirrors it for presentation.
type Display interface {
	// Clear turns every pixel off.
	Clear()
	// Present applies a batch of changed pixels and reports whether the
	// display observed a lit pixel being turned off. Each call gets its own
	// slice, which the display may keep.
	Present(diffs []Pixel) bool
	// Flush publishes the current frame.
	Flush()
}

// Input exposes the 16-key hex keypad. Poll must not block longer than a
// single pass over the underlying device.
type Input interface {
	// Poll refreshes key state and reports whether termination was requested.
	Poll() bool
	IsKeyDown(key uint8) bool
	LastKeyPressed() (uint8, bool)
}

// Speaker is switched on while the sound timer is non-zero.
type Speaker interface {
	SetTone(on bool)
}

type nopDisplay struct{}

func (nopDisplay) Clear()               {}
func (nopDisplay) Present([]Pixel) bool { return false }
func (nopDisplay) Flush()               {}

type nopInput struct{}

func (nopInput) Poll() bool                    { return false }
func (nopInput) IsKeyDown(uint8) bool          { return false }
func (nopInput) LastKeyPressed() (uint8, bool) { return 0, false }

type nopSpeaker struct{}

func (nopSpeaker) SetTone(bool) {}

// ConnectDisplay attaches d; nil restores the no-op display.
func (c *CPU) ConnectDisplay(d Display) {
	if d == nil {
		d = nopDisplay{}
	}
	c.display = d
}

// ConnectInput attaches in; nil restores an input with no keys pressed.
func (c *CPU) ConnectInput(in Input) {
	if in == nil {
		in = nopInput{}
	}
	c.input = in
}

// ConnectSpeaker attaches s; nil silences the sound timer.
func (c *CPU) ConnectSpeaker(s Speaker) {
	if s == nil {
		s = nopSpeaker{}
	}
	c.speaker = s
	c.toneOn = false
}

// ConnectClock attaches the timer pulse source. Without a clock the delay
// and sound timers never decrement.
func (c *CPU) ConnectClock(clk Clock) {
	c.clock = clk
}
