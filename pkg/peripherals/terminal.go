//go:build unix

package peripherals

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"gochip8/pkg/cpu"
)

// DefaultHold is how long a terminal key counts as held after its last
// byte arrived. Terminals report key repeats but never key releases.
const DefaultHold = 150 * time.Millisecond

const (
	keyEsc   = 0x1B
	keyCtrlC = 0x03
)

var ErrTerminalTooSmall = errors.New("terminal too small")

// Terminal renders the frame with half-block glyphs on a raw-mode terminal
// and reads the keypad from stdin. It is both a Display and an Input.
type Terminal struct {
	*Headless
	keys *Keypad

	out       io.Writer
	hold      time.Duration
	heldUntil [16]time.Time
	now       func() time.Time

	fd          int
	oldState    *term.State
	nonblockSet bool
	buf         []byte
}

func NewTerminal(out io.Writer, hold time.Duration) *Terminal {
	if hold <= 0 {
		hold = DefaultHold
	}
	return &Terminal{
		Headless: NewHeadless(),
		keys:     NewKeypad(),
		out:      out,
		hold:     hold,
		now:      time.Now,
		fd:       -1,
		buf:      make([]byte, 64),
	}
}

// Start puts stdin in raw, non-blocking mode and clears the screen.
// Call Stop to restore the terminal.
func (t *Terminal) Start() error {
	fd := int(os.Stdin.Fd())
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		if w < cpu.ScreenWidth+2 || h < cpu.ScreenHeight/2+2 {
			return fmt.Errorf("%w: need %dx%d, have %dx%d",
				ErrTerminalTooSmall, cpu.ScreenWidth+2, cpu.ScreenHeight/2+2, w, h)
		}
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set raw mode: %w", err)
	}
	t.oldState = oldState

	if err := unix.SetNonblock(fd, true); err != nil {
		_ = term.Restore(fd, oldState)
		t.oldState = nil
		return fmt.Errorf("set nonblocking stdin: %w", err)
	}
	t.nonblockSet = true
	t.fd = fd

	// Hide the cursor and clear.
	fmt.Fprint(t.out, "\x1b[?25l\x1b[2J")
	t.Headless.Clear()
	return nil
}

// Stop restores stdin and shows the cursor again.
func (t *Terminal) Stop() {
	if t.fd < 0 {
		return
	}
	if t.nonblockSet {
		_ = unix.SetNonblock(t.fd, false)
		t.nonblockSet = false
	}
	if t.oldState != nil {
		_ = term.Restore(t.fd, t.oldState)
		t.oldState = nil
	}
	fmt.Fprint(t.out, "\x1b[?25h\r\n")
	t.fd = -1
}

// Poll drains pending stdin bytes, releases keys whose hold window expired
// and reports whether Esc or Ctrl-C was pressed.
func (t *Terminal) Poll() bool {
	if t.fd >= 0 {
		for {
			n, err := unix.Read(t.fd, t.buf)
			if n > 0 {
				t.feed(t.buf[:n])
			}
			if err != nil || n < len(t.buf) {
				break
			}
		}
	}
	t.expire()
	return t.keys.Poll()
}

// feed maps a chunk of raw input to key presses. A lone Esc quits; Esc
// followed by more bytes starts an escape sequence, which is skipped.
func (t *Terminal) feed(chunk []byte) {
	now := t.now()
	for i := 0; i < len(chunk); i++ {
		b := chunk[i]
		switch {
		case b == keyCtrlC:
			t.keys.Quit()
		case b == keyEsc:
			if i == len(chunk)-1 {
				t.keys.Quit()
				return
			}
			i = skipEscape(chunk, i)
		default:
			if k, ok := KeyForRune(rune(b)); ok {
				t.keys.Press(k)
				t.heldUntil[k] = now.Add(t.hold)
			}
		}
	}
}

// skipEscape returns the index of the last byte of the escape sequence
// starting at chunk[i]. CSI (Esc [) and SS3 (Esc O) sequences run through
// their final byte in 0x40-0x7E; any other Esc pair is two bytes long.
func skipEscape(chunk []byte, i int) int {
	i++
	if chunk[i] != '[' && chunk[i] != 'O' {
		return i
	}
	for i++; i < len(chunk); i++ {
		if chunk[i] >= 0x40 && chunk[i] <= 0x7E {
			return i
		}
	}
	return len(chunk) - 1
}

func (t *Terminal) expire() {
	now := t.now()
	for k := range t.heldUntil {
		if t.keys.IsKeyDown(uint8(k)) && now.After(t.heldUntil[k]) {
			t.keys.Release(uint8(k))
		}
	}
}

func (t *Terminal) IsKeyDown(key uint8) bool      { return t.keys.IsKeyDown(key) }
func (t *Terminal) LastKeyPressed() (uint8, bool) { return t.keys.LastKeyPressed() }

// Flush redraws the frame if it changed since the last flush.
func (t *Terminal) Flush() {
	t.Headless.Flush()
	frame, ok := t.takeDirty()
	if !ok {
		return
	}
	fmt.Fprint(t.out, "\x1b[H"+renderHalfBlocks(&frame))
}

// renderHalfBlocks draws two frame rows per text line inside a border.
// Lines end in CRLF because raw mode disables output post-processing.
func renderHalfBlocks(f *cpu.Framebuffer) string {
	var sb strings.Builder
	border := strings.Repeat("─", cpu.ScreenWidth)

	sb.WriteString("┌" + border + "┐\r\n")
	for y := 0; y < cpu.ScreenHeight; y += 2 {
		sb.WriteString("│")
		for x := 0; x < cpu.ScreenWidth; x++ {
			top, bottom := f[y][x], f[y+1][x]
			switch {
			case top && bottom:
				sb.WriteString("█")
			case top:
				sb.WriteString("▀")
			case bottom:
				sb.WriteString("▄")
			default:
				sb.WriteByte(' ')
			}
		}
		sb.WriteString("│\r\n")
	}
	sb.WriteString("└" + border + "┘\r\n")
	return sb.String()
}
