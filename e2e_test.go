package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gochip8/pkg/asm"
	"gochip8/pkg/cpu"
	"gochip8/pkg/peripherals"
)

func bootProgram(t *testing.T, source string) (*cpu.CPU, map[string]uint16) {
	t.Helper()
	a := asm.NewAssembler()
	program, _, err := a.Assemble(source)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	vm := cpu.NewCPU()
	if err := vm.LoadProgram(program); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	return vm, a.Labels()
}

func cycle(t *testing.T, vm *cpu.CPU, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := vm.Cycle(); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}
}

func TestBCDAndFontDraw(t *testing.T) {
	vm, _ := bootProgram(t, `
    LD V0, 123
    LD I, scratch
    LD B, V0
    LD V2, [I]
    LD V5, 0
    LD V6, 0
    LD F, V0
    DRW V5, V6, 5
halt:
    JP halt
scratch:
    DB 0, 0, 0
`)
	display := peripherals.NewHeadless()
	vm.ConnectDisplay(display)
	cycle(t, vm, 20)

	if vm.V[0] != 1 || vm.V[1] != 2 || vm.V[2] != 3 {
		t.Fatalf("BCD digits = %d %d %d, want 1 2 3", vm.V[0], vm.V[1], vm.V[2])
	}
	if vm.V[0xF] != 0 {
		t.Errorf("VF = %d, want 0 on a clear screen", vm.V[0xF])
	}
	// Glyph "1" has 8 lit pixels.
	if got := vm.Frame.Lit(); got != 8 {
		t.Errorf("lit pixels = %d, want 8", got)
	}
	if display.Frame() != vm.Frame {
		t.Error("display frame diverged from the machine frame")
	}
}

func TestSubroutineCarry(t *testing.T) {
	vm, labels := bootProgram(t, `
    LD V0, 200
    LD V1, 100
    CALL add_pair
halt:
    JP halt
add_pair:
    ADD V0, V1
    RET
`)
	cycle(t, vm, 6)

	if vm.V[0] != 44 {
		t.Errorf("V0 = %d, want 44", vm.V[0])
	}
	if vm.V[0xF] != 1 {
		t.Errorf("VF = %d, want carry 1", vm.V[0xF])
	}
	if vm.SP != 0 {
		t.Errorf("SP = %d, want 0 after RET", vm.SP)
	}
	if vm.PC != labels["HALT"] {
		t.Errorf("PC = 0x%03X, want halt at 0x%03X", vm.PC, labels["HALT"])
	}
}

func TestWaitKeyWithScriptedInput(t *testing.T) {
	vm, _ := bootProgram(t, `
    LD V3, K
halt:
    JP halt
`)
	vm.ConnectInput(peripherals.NewScriptedInput(
		peripherals.KeyFrame{Polls: 3},
		peripherals.KeyFrame{Keys: []uint8{0xA}, Polls: 1},
	))

	n, err := vm.RunCycles(10)
	if err != nil {
		t.Fatalf("RunCycles failed: %v", err)
	}
	if n != 4 {
		t.Errorf("executed %d cycles, want 4", n)
	}
	if vm.V[3] != 0xA {
		t.Errorf("V3 = 0x%X, want 0xA", vm.V[3])
	}
	if vm.WaitingKey {
		t.Error("still waiting after the key arrived")
	}
	if vm.PC != 0x202 {
		t.Errorf("PC = 0x%03X, want 0x202", vm.PC)
	}
}

func TestDelayTimerWithManualClock(t *testing.T) {
	vm, labels := bootProgram(t, `
    LD V0, 3
    LD DT, V0
wait:
    LD V1, DT
    SE V1, 0
    JP wait
done:
    JP done
`)
	clock := cpu.NewManualClock()
	vm.ConnectClock(clock)

	cycle(t, vm, 2)
	if vm.DT != 3 {
		t.Fatalf("DT = %d, want 3", vm.DT)
	}

	clock.Tick(1)
	cycle(t, vm, 3)
	if vm.V[1] != 2 {
		t.Errorf("V1 = %d, want 2 after one tick", vm.V[1])
	}
	if vm.PC != labels["WAIT"] {
		t.Errorf("PC = 0x%03X, want loop back to 0x%03X", vm.PC, labels["WAIT"])
	}

	clock.Tick(2)
	cycle(t, vm, 2)
	if vm.DT != 0 {
		t.Errorf("DT = %d, want 0", vm.DT)
	}
	if vm.PC != labels["DONE"] {
		t.Errorf("PC = 0x%03X, want done at 0x%03X", vm.PC, labels["DONE"])
	}
}

func TestAssembleAndRunBinary(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "digit.asm")
	source := `
    CLS
    LD V0, 8
    LD V1, 4
    LD V2, 0
    LD F, V2
    DRW V0, V1, 5
    LD V3, 30
    LD DT, V3
halt:
    JP halt
`
	if err := os.WriteFile(src, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}

	out := defaultOutputPath(src)
	if filepath.Ext(out) != ".ch8" {
		t.Fatalf("default output %q, want .ch8 extension", out)
	}
	n, err := assembleFile(src, out)
	if err != nil {
		t.Fatalf("assembleFile failed: %v", err)
	}
	if n != 18 {
		t.Errorf("assembled %d bytes, want 18", n)
	}

	shot := filepath.Join(dir, "frame.png")
	vm, display, err := runBinary(out, runConfig{hz: 600, cycles: 100, wrap: true, screenshot: shot})
	if err != nil {
		t.Fatalf("runBinary failed: %v", err)
	}
	if vm.Cycles != 100 {
		t.Errorf("cycles = %d, want 100", vm.Cycles)
	}
	// 100 cycles at 10 per frame is 10 ticks; the first one lands before
	// DT is set.
	if vm.DT != 21 {
		t.Errorf("DT = %d, want 21", vm.DT)
	}
	if got := vm.Frame.Lit(); got != 14 {
		t.Errorf("lit pixels = %d, want 14", got)
	}
	if display.Flushes() != 10 {
		t.Errorf("flushes = %d, want 10", display.Flushes())
	}
	if _, err := os.Stat(shot); err != nil {
		t.Errorf("screenshot not written: %v", err)
	}

	var buf bytes.Buffer
	printState(&buf, out, vm)
	if !strings.Contains(buf.String(), "run complete") || !strings.Contains(buf.String(), "V3=0x1E") {
		t.Errorf("unexpected state output:\n%s", buf.String())
	}
}

func TestRunBinaryStopsOnFatalError(t *testing.T) {
	dir := t.TempDir()
	rom := filepath.Join(dir, "ret.ch8")
	if err := os.WriteFile(rom, []byte{0x00, 0xEE}, 0o644); err != nil {
		t.Fatal(err)
	}

	vm, _, err := runBinary(rom, runConfig{hz: 600, cycles: 50})
	if !errors.Is(err, cpu.ErrStackUnderflow) {
		t.Fatalf("err = %v, want stack underflow", err)
	}
	if !vm.Halted {
		t.Error("machine should be halted")
	}
}

func TestRunBinaryRejectsOversizedROM(t *testing.T) {
	rom := filepath.Join(t.TempDir(), "big.ch8")
	if err := os.WriteFile(rom, make([]byte, cpu.MaxProgramSize+1), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runBinary(rom, runConfig{hz: 600, cycles: 1}); !errors.Is(err, cpu.ErrProgramTooLarge) {
		t.Errorf("err = %v, want ErrProgramTooLarge", err)
	}
}

func TestCreateLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	createLogger(&buf, false, true).Warn("hidden")
	createLogger(&buf, false, false).Debug("hidden")
	createLogger(&buf, true, true).Debug("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("unexpected output: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug message missing: %s", buf.String())
	}
}
