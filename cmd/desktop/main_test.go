package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"

	"gochip8/pkg/asm"
	"gochip8/pkg/cpu"
)

func newTestGame(t *testing.T, src string, hz int) *Game {
	t.Helper()
	program, _, err := asm.Assemble(src)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	vm := cpu.NewCPU()
	if err := vm.LoadProgram(program); err != nil {
		t.Fatal(err)
	}
	return newGame(vm, hz, 10, "test.asm")
}

func keysDown(keys ...ebiten.Key) func(ebiten.Key) bool {
	return func(k ebiten.Key) bool {
		for _, d := range keys {
			if d == k {
				return true
			}
		}
		return false
	}
}

func TestMainWiringIntegration(t *testing.T) {
	// Waits for a key, then counts frames on the delay timer.
	g := newTestGame(t, `
		LD V1, K
		LD V2, 10
		LD DT, V2
	spin:
		JP spin
	`, 600)

	if g.perFrame != 10 {
		t.Fatalf("expected 10 cycles per frame at 600 Hz, got %d", g.perFrame)
	}

	for i := 0; i < 3; i++ {
		if err := g.step(keysDown()); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if !g.vm.WaitingKey || g.vm.PC != cpu.ProgramStart {
		t.Fatalf("expected VM to wait for a key, PC=0x%03X", g.vm.PC)
	}
	if !strings.Contains(g.status(), "waiting for key") {
		t.Errorf("status should report the key wait, got %q", g.status())
	}

	// R sits where hex key D is on the pad.
	if err := g.step(keysDown(ebiten.KeyR)); err != nil {
		t.Fatal(err)
	}
	if g.vm.V[1] != 0xD {
		t.Errorf("expected V1=0xD, got 0x%X", g.vm.V[1])
	}
	if g.vm.DT != 10 {
		t.Errorf("expected DT=10 right after loading, got %d", g.vm.DT)
	}

	for i := 0; i < 4; i++ {
		if err := g.step(keysDown()); err != nil {
			t.Fatal(err)
		}
	}
	if g.vm.DT != 6 {
		t.Errorf("expected one timer tick per frame, DT=%d", g.vm.DT)
	}
	if g.keys.IsKeyDown(0xD) {
		t.Errorf("releasing R should release key D")
	}
}

func TestStepEscapeTerminates(t *testing.T) {
	g := newTestGame(t, "spin: JP spin", 600)
	if err := g.step(keysDown(ebiten.KeyEscape)); !errors.Is(err, ebiten.Termination) {
		t.Errorf("expected ebiten.Termination, got %v", err)
	}
}

func TestStepStopsOnFatalError(t *testing.T) {
	g := newTestGame(t, "RET", 600)
	if err := g.step(keysDown()); err != nil {
		t.Fatalf("fatal VM errors should not close the window, got %v", err)
	}
	if !errors.Is(g.err, cpu.ErrStackUnderflow) {
		t.Errorf("expected stack underflow, got %v", g.err)
	}
	cycles := g.vm.Cycles
	if err := g.step(keysDown()); err != nil {
		t.Fatal(err)
	}
	if g.vm.Cycles != cycles {
		t.Errorf("halted VM should not execute more cycles")
	}
	if !strings.HasPrefix(g.status(), "halted:") {
		t.Errorf("expected halted status, got %q", g.status())
	}
}

type toneRecorder struct {
	on bool
}

func (r *toneRecorder) SetTone(on bool) { r.on = on }

func TestPauseSilencesTone(t *testing.T) {
	g := newTestGame(t, `
		LD V0, 120
		LD ST, V0
	spin:
		JP spin
	`, 600)
	spk := &toneRecorder{}
	g.vm.ConnectSpeaker(spk)

	if err := g.step(keysDown()); err != nil {
		t.Fatal(err)
	}
	if !spk.on {
		t.Fatal("expected the tone to start with the sound timer")
	}

	g.paused = true
	if err := g.step(keysDown()); err != nil {
		t.Fatal(err)
	}
	if spk.on {
		t.Errorf("tone still on while paused, ST=%d", g.vm.ST)
	}

	g.paused = false
	if err := g.step(keysDown()); err != nil {
		t.Fatal(err)
	}
	if !spk.on {
		t.Errorf("expected the tone to resume, ST=%d", g.vm.ST)
	}
}

func TestHaltedGameIsSilent(t *testing.T) {
	g := newTestGame(t, `
		LD V0, 200
		LD ST, V0
		RET
	`, 600)
	spk := &toneRecorder{}
	g.vm.ConnectSpeaker(spk)

	for i := 0; i < 3; i++ {
		if err := g.step(keysDown()); err != nil {
			t.Fatal(err)
		}
	}
	if g.err == nil {
		t.Fatal("expected the VM to halt")
	}
	if spk.on {
		t.Errorf("tone still on after halt, ST=%d", g.vm.ST)
	}
}

func TestPausedGameDoesNotRun(t *testing.T) {
	g := newTestGame(t, "spin: JP spin", 60)
	g.paused = true
	if err := g.step(keysDown()); err != nil {
		t.Fatal(err)
	}
	if g.vm.Cycles != 0 {
		t.Errorf("paused game executed %d cycles", g.vm.Cycles)
	}
	if g.perFrame != 1 {
		t.Errorf("expected at least one cycle per frame, got %d", g.perFrame)
	}
}
