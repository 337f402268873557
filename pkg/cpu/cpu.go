package cpu

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"gochip8/pkg/opcode"
)

const (
	MemorySize     = 4096
	ProgramStart   = 0x200
	MaxProgramSize = MemorySize - ProgramStart
	StackDepth     = 16
	RegFlag        = 0xF
)

type CPU struct {
	Memory [MemorySize]byte
	V      [16]byte

	I  uint16
	PC uint16

	Stack [StackDepth]uint16
	SP    uint8

	DT uint8
	ST uint8

	Frame Framebuffer

	// Wrap selects sprite wraparound at the screen edges. When false,
	// pixels past the right or bottom edge are dropped.
	Wrap bool

	// WaitingKey is set while LD Vx, K spins waiting for a key press.
	WaitingKey bool

	Halted bool
	Cycles uint64

	display Display
	input   Input
	speaker Speaker
	clock   Clock
	rng     *rand.Rand
	log     *slog.Logger

	toneOn bool
}

// NewCPU creates a machine with zeroed registers, the font loaded at 0x000
// and PC at the program start. Peripherals default to no-op implementations.
func NewCPU() *CPU {
	c := &CPU{
		PC:      ProgramStart,
		Wrap:    true,
		display: nopDisplay{},
		input:   nopInput{},
		speaker: nopSpeaker{},
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5EED)),
		log:     slog.Default(),
	}
	copy(c.Memory[FontBase:], font[:])
	return c
}

// SetLogger replaces the logger used for tracing and diagnostics.
func (c *CPU) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	c.log = l
}

// SetRandSource replaces the generator behind RND.
func (c *CPU) SetRandSource(src rand.Source) {
	c.rng = rand.New(src)
}

// LoadProgram copies program into memory at ProgramStart. Programs larger
// than MaxProgramSize are rejected and leave the machine untouched.
func (c *CPU) LoadProgram(program []byte) error {
	if len(program) > MaxProgramSize {
		return fmt.Errorf("%w: %d bytes > %d bytes", ErrProgramTooLarge, len(program), MaxProgramSize)
	}
	copy(c.Memory[ProgramStart:], program)
	return nil
}

// Tick applies one timer pulse.
func (c *CPU) Tick() {
	c.advanceTimers(1)
}

// advanceTimers applies n timer pulses, stopping each timer at zero.
func (c *CPU) advanceTimers(n int) {
	c.DT = byte(max(int(c.DT)-n, 0))
	c.ST = byte(max(int(c.ST)-n, 0))
}

func (c *CPU) drainTicks() {
	if c.clock == nil {
		return
	}
	ticks := c.clock.Ticks()
	for {
		select {
		case n := <-ticks:
			c.advanceTimers(n)
		default:
			return
		}
	}
}

func (c *CPU) updateTone() {
	on := c.ST > 0 && !c.Halted
	if on != c.toneOn {
		c.toneOn = on
		c.speaker.SetTone(on)
	}
}

// Silence switches the speaker off. If the sound timer is still running the
// tone comes back on at the next executed cycle.
func (c *CPU) Silence() {
	c.toneOn = false
	c.speaker.SetTone(false)
}

func (c *CPU) fail(word uint16, err error) error {
	c.Halted = true
	c.Silence()
	return &ExecError{PC: c.PC, Word: word, Err: err}
}

// Cycle executes exactly one instruction. Fatal conditions halt the CPU and
// are returned as *ExecError; unknown opcodes are skipped.
func (c *CPU) Cycle() error {
	if c.Halted {
		return ErrHalted
	}

	c.drainTicks()
	defer c.updateTone()

	if int(c.PC)+1 >= MemorySize {
		return c.fail(0, ErrOutOfBounds)
	}
	word := opcode.FromBytes(c.Memory[c.PC], c.Memory[c.PC+1])
	inst, err := opcode.Decode(word)
	if err != nil {
		c.log.Warn("skipping unknown opcode", "pc", fmt.Sprintf("0x%03X", c.PC), "err", err)
	}

	if c.log.Enabled(context.Background(), slog.LevelDebug) {
		c.log.Debug("exec",
			"pc", fmt.Sprintf("0x%03X", c.PC),
			"opcode", fmt.Sprintf("0x%04X", word),
			"instr", inst.String(),
		)
	}

	next, err := c.execute(inst)
	if err != nil {
		return c.fail(word, err)
	}
	c.PC = next
	c.Cycles++
	return nil
}

// execute applies inst and returns the next program counter.
func (c *CPU) execute(inst opcode.Instruction) (uint16, error) {
	next := c.PC + 2
	x, y := inst.X, inst.Y
	vx, vy := c.V[x], c.V[y]

	switch inst.Op {
	case opcode.OpUnknown:
		// Skipped; already reported by Cycle.

	case opcode.OpSys:
		// Native machine-code routines are not supported.
		c.log.Debug("ignoring SYS call", "addr", fmt.Sprintf("0x%03X", inst.Addr))

	case opcode.OpClear:
		c.Frame.Clear()
		c.display.Clear()

	case opcode.OpReturn:
		if c.SP == 0 {
			return 0, ErrStackUnderflow
		}
		c.SP--
		next = c.Stack[c.SP]

	case opcode.OpJump:
		next = inst.Addr

	case opcode.OpCall:
		if int(c.SP) >= StackDepth {
			return 0, ErrStackOverflow
		}
		c.Stack[c.SP] = c.PC + 2
		c.SP++
		next = inst.Addr

	case opcode.OpSkipEqImm:
		if vx == inst.Imm {
			next += 2
		}

	case opcode.OpSkipNeqImm:
		if vx != inst.Imm {
			next += 2
		}

	case opcode.OpSkipEq:
		if vx == vy {
			next += 2
		}

	case opcode.OpSkipNeq:
		if vx != vy {
			next += 2
		}

	case opcode.OpLoadImm:
		c.V[x] = inst.Imm

	case opcode.OpAddImm:
		c.V[x] = vx + inst.Imm

	case opcode.OpLoadReg:
		c.V[x] = vy

	case opcode.OpOr:
		c.V[x] = vx | vy

	case opcode.OpAnd:
		c.V[x] = vx & vy

	case opcode.OpXor:
		c.V[x] = vx ^ vy

	case opcode.OpAdd:
		sum := uint16(vx) + uint16(vy)
		c.V[x] = byte(sum)
		c.V[RegFlag] = boolToByte(sum > 0xFF)

	case opcode.OpSub:
		c.V[x] = vx - vy
		c.V[RegFlag] = boolToByte(vx >= vy)

	case opcode.OpSubN:
		c.V[x] = vy - vx
		c.V[RegFlag] = boolToByte(vy >= vx)

	case opcode.OpShiftR:
		c.V[RegFlag] = vx & 0x01
		c.V[x] = vx >> 1

	case opcode.OpShiftL:
		c.V[RegFlag] = vx >> 7
		c.V[x] = vx << 1

	case opcode.OpLoadIndex:
		c.I = inst.Addr

	case opcode.OpJumpV0:
		next = inst.Addr + uint16(c.V[0])

	case opcode.OpRand:
		c.V[x] = byte(c.rng.Uint32()) & inst.Imm

	case opcode.OpDraw:
		collision, err := c.drawSprite(vx, vy, inst.N)
		if err != nil {
			return 0, err
		}
		c.V[RegFlag] = boolToByte(collision)

	case opcode.OpSkipKey:
		if c.input.IsKeyDown(vx & 0xF) {
			next += 2
		}

	case opcode.OpSkipNotKey:
		if !c.input.IsKeyDown(vx & 0xF) {
			next += 2
		}

	case opcode.OpLoadDelay:
		c.V[x] = c.DT

	case opcode.OpWaitKey:
		key, ok := c.input.LastKeyPressed()
		if !ok {
			c.WaitingKey = true
			return c.PC, nil
		}
		c.WaitingKey = false
		c.V[x] = key & 0xF

	case opcode.OpSetDelay:
		c.DT = vx

	case opcode.OpSetSound:
		c.ST = vx

	case opcode.OpAddIndex:
		c.I += uint16(vx)

	case opcode.OpLoadFont:
		c.I = FontBase + uint16(vx)*GlyphSize

	case opcode.OpStoreBCD:
		if int(c.I)+3 > MemorySize {
			return 0, ErrOutOfBounds
		}
		c.Memory[c.I] = vx / 100
		c.Memory[c.I+1] = (vx / 10) % 10
		c.Memory[c.I+2] = vx % 10

	case opcode.OpStoreRegs:
		if int(c.I)+int(x)+1 > MemorySize {
			return 0, ErrOutOfBounds
		}
		copy(c.Memory[c.I:], c.V[:x+1])

	case opcode.OpLoadRegs:
		if int(c.I)+int(x)+1 > MemorySize {
			return 0, ErrOutOfBounds
		}
		copy(c.V[:x+1], c.Memory[c.I:])

	default:
		return 0, fmt.Errorf("unhandled op %d", inst.Op)
	}

	return next, nil
}

func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// RunCycles executes up to n cycles without pacing, stopping early when the
// input requests termination. It returns the number of cycles executed.
func (c *CPU) RunCycles(n int) (int, error) {
	for i := 0; i < n; i++ {
		if c.input.Poll() {
			return i, nil
		}
		if err := c.Cycle(); err != nil {
			return i, err
		}
	}
	return n, nil
}

// DefaultHz is the instruction rate used by Run when none is given.
const DefaultHz = 600

// Run executes cycles at hz instructions per second, in batches of one
// 60 Hz frame, until the input requests termination, ctx is done or a
// fatal error occurs. The display is flushed after every frame.
func (c *CPU) Run(ctx context.Context, hz int) error {
	if hz <= 0 {
		hz = DefaultHz
	}
	perFrame := hz / TimerHz
	if perFrame < 1 {
		perFrame = 1
	}

	ticker := time.NewTicker(time.Second / TimerHz)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if c.input.Poll() {
			c.log.Info("termination requested", "cycles", c.Cycles)
			return nil
		}
		for i := 0; i < perFrame; i++ {
			if err := c.Cycle(); err != nil {
				c.log.Error("execution stopped", "err", err)
				return err
			}
		}
		c.display.Flush()
	}
}
