package peripherals

import (
	"encoding/binary"
	"math"
)

const (
	BeepSampleRate = 44100
	BeepFrequency  = 440
	beepAmplitude  = 0.2
)

// squareWave renders a mono float32 little-endian square wave.
type squareWave struct {
	period int
	phase  int
}

func newSquareWave(sampleRate, freq int) *squareWave {
	if freq <= 0 {
		freq = BeepFrequency
	}
	period := sampleRate / freq
	if period < 2 {
		period = 2
	}
	return &squareWave{period: period}
}

// fill writes whole samples into p and returns the number of bytes written.
// While off it writes silence and resets the phase.
func (w *squareWave) fill(p []byte, on bool) int {
	n := len(p) / 4
	for i := 0; i < n; i++ {
		var v float32
		if on {
			v = beepAmplitude
			if w.phase >= w.period/2 {
				v = -beepAmplitude
			}
			w.phase = (w.phase + 1) % w.period
		}
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	if !on {
		w.phase = 0
	}
	return n * 4
}
