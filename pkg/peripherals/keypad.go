package peripherals

import "sync"

// Layout maps each hex key to the QWERTY key occupying the same position
// on the classic 4×4 pad:
//
//	1 2 3 C     1 2 3 4
//	4 5 6 D  →  q w e r
//	7 8 9 E     a s d f
//	A 0 B F     z x c v
var Layout = [16]rune{
	'x', '1', '2', '3',
	'q', 'w', 'e', 'a',
	's', 'd', 'z', 'c',
	'4', 'r', 'f', 'v',
}

// KeyForRune returns the hex key bound to r, ignoring case.
func KeyForRune(r rune) (uint8, bool) {
	if r >= 'A' && r <= 'Z' {
		r += 'a' - 'A'
	}
	for k, bound := range Layout {
		if bound == r {
			return uint8(k), true
		}
	}
	return 0, false
}

// Keypad is a thread-safe key state fed by a frontend. The last-pressed
// latch holds the most recent key pressed until that key is released.
type Keypad struct {
	mu   sync.Mutex
	down [16]bool
	last int
	quit bool
}

func NewKeypad() *Keypad {
	return &Keypad{last: -1}
}

func (k *Keypad) Press(key uint8)   { k.Set(key, true) }
func (k *Keypad) Release(key uint8) { k.Set(key, false) }

// Set presses or releases key. Pressing a key that is already down does not
// move the latch.
func (k *Keypad) Set(key uint8, down bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	key &= 0xF
	if k.down[key] == down {
		return
	}
	k.down[key] = down
	if down {
		k.last = int(key)
	} else if k.last == int(key) {
		k.last = -1
	}
}

func (k *Keypad) ReleaseAll() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.down = [16]bool{}
	k.last = -1
}

// Quit makes the next Poll request termination.
func (k *Keypad) Quit() {
	k.mu.Lock()
	k.quit = true
	k.mu.Unlock()
}

func (k *Keypad) Poll() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.quit
}

func (k *Keypad) IsKeyDown(key uint8) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.down[key&0xF]
}

func (k *Keypad) LastKeyPressed() (uint8, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.last < 0 {
		return 0, false
	}
	return uint8(k.last), true
}
