//go:build !headless

package peripherals

import (
	"sync"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
)

// Beeper plays a square-wave tone while the sound timer runs.
type Beeper struct {
	ctx     *oto.Context
	player  *oto.Player
	wave    *squareWave
	on      atomic.Bool
	started bool
	mu      sync.Mutex
}

// NewBeeper opens the audio device. Only one Beeper may exist per process.
func NewBeeper(freq int) (*Beeper, error) {
	op := &oto.NewContextOptions{
		SampleRate:   BeepSampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	b := &Beeper{
		ctx:  ctx,
		wave: newSquareWave(BeepSampleRate, freq),
	}
	b.player = ctx.NewPlayer(b)
	return b, nil
}

// Read feeds the audio device.
func (b *Beeper) Read(p []byte) (int, error) {
	return b.wave.fill(p, b.on.Load()), nil
}

func (b *Beeper) SetTone(on bool) {
	b.on.Store(on)
	if !on {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started && b.player != nil {
		b.player.Play()
		b.started = true
	}
}

func (b *Beeper) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.on.Store(false)
	if b.player == nil {
		return nil
	}
	err := b.player.Close()
	b.player = nil
	b.started = false
	return err
}
