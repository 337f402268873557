package peripherals

// KeyFrame holds Keys down for Polls consecutive polls.
type KeyFrame struct {
	Keys  []uint8
	Polls int
}

// ScriptedInput replays a fixed key script and requests termination once
// the script is exhausted.
type ScriptedInput struct {
	frames []KeyFrame
	idx    int
	polled int
	down   [16]bool
	last   int
	polls  int
}

func NewScriptedInput(frames ...KeyFrame) *ScriptedInput {
	return &ScriptedInput{frames: frames, last: -1}
}

func (s *ScriptedInput) Poll() bool {
	s.polls++
	if s.idx >= len(s.frames) {
		s.down = [16]bool{}
		s.last = -1
		return true
	}

	frame := s.frames[s.idx]
	s.down = [16]bool{}
	s.last = -1
	for _, k := range frame.Keys {
		s.down[k&0xF] = true
		s.last = int(k & 0xF)
	}

	s.polled++
	if s.polled >= max(frame.Polls, 1) {
		s.idx++
		s.polled = 0
	}
	return false
}

// Polls returns how many times Poll has been called.
func (s *ScriptedInput) Polls() int { return s.polls }

func (s *ScriptedInput) IsKeyDown(key uint8) bool {
	return s.down[key&0xF]
}

func (s *ScriptedInput) LastKeyPressed() (uint8, bool) {
	if s.last < 0 {
		return 0, false
	}
	return uint8(s.last), true
}
