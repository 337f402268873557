//go:build headless

package peripherals

import "sync/atomic"

// Beeper records the tone state without opening an audio device.
type Beeper struct {
	on atomic.Bool
}

func NewBeeper(int) (*Beeper, error) {
	return &Beeper{}, nil
}

func (b *Beeper) SetTone(on bool) { b.on.Store(on) }
func (b *Beeper) Close() error    { return nil }
