package main

import (
	"flag"
	"fmt"
	"image/color"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"

	"gochip8/pkg/cpu"
	"gochip8/pkg/peripherals"
	"gochip8/pkg/utils"
)

const statusHeight = 16

// padKeys binds each hex key to the ebiten key at the same QWERTY position.
var padKeys = [16]ebiten.Key{
	ebiten.KeyX, ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3,
	ebiten.KeyQ, ebiten.KeyW, ebiten.KeyE, ebiten.KeyA,
	ebiten.KeyS, ebiten.KeyD, ebiten.KeyZ, ebiten.KeyC,
	ebiten.KeyDigit4, ebiten.KeyR, ebiten.KeyF, ebiten.KeyV,
}

type Game struct {
	vm       *cpu.CPU
	keys     *peripherals.Keypad
	clock    *cpu.ManualClock
	perFrame int
	scale    int
	name     string

	paused bool
	err    error

	frameImg *ebiten.Image // reused 64×32 canvas
}

func newGame(vm *cpu.CPU, hz, scale int, name string) *Game {
	perFrame := hz / ebiten.DefaultTPS
	if perFrame < 1 {
		perFrame = 1
	}
	g := &Game{
		vm:       vm,
		keys:     peripherals.NewKeypad(),
		clock:    cpu.NewManualClock(),
		perFrame: perFrame,
		scale:    scale,
		name:     name,
	}
	vm.ConnectInput(g.keys)
	vm.ConnectClock(g.clock)
	return g
}

// step advances one 60 Hz frame using isDown as the key state source.
func (g *Game) step(isDown func(ebiten.Key) bool) error {
	if isDown(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	for k, key := range padKeys {
		g.keys.Set(uint8(k), isDown(key))
	}

	if g.paused {
		g.vm.Silence()
		return nil
	}
	if g.err != nil {
		return nil
	}

	g.clock.Tick(1)
	if _, err := g.vm.RunCycles(g.perFrame); err != nil {
		slog.Error("execution stopped", "err", err)
		g.err = err
	}
	if g.keys.Poll() {
		return ebiten.Termination
	}
	return nil
}

func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		g.paused = !g.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		name := fmt.Sprintf("chip8-%s.png", time.Now().Format("20060102-150405"))
		if err := g.vm.SaveScreenshot(name, g.scale); err != nil {
			slog.Warn("screenshot failed", "err", err)
		} else {
			slog.Info("saved screenshot", "path", name)
		}
	}
	return g.step(ebiten.IsKeyPressed)
}

func (g *Game) status() string {
	switch {
	case g.err != nil:
		return "halted: " + g.err.Error()
	case g.paused:
		return "paused  [P] resume"
	case g.vm.WaitingKey:
		return g.name + "  waiting for key"
	}
	return fmt.Sprintf("%s  PC=%03X I=%03X DT=%02X ST=%02X", g.name, g.vm.PC, g.vm.I, g.vm.DT, g.vm.ST)
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.frameImg == nil {
		g.frameImg = ebiten.NewImage(cpu.ScreenWidth, cpu.ScreenHeight)
	}
	g.frameImg.WritePixels(g.vm.FrameRGBA())

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(g.scale), float64(g.scale))
	screen.DrawImage(g.frameImg, op)

	text.Draw(screen, g.status(), basicfont.Face7x13, 4, cpu.ScreenHeight*g.scale+statusHeight-4, color.Gray{Y: 0xB0})
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return cpu.ScreenWidth * g.scale, cpu.ScreenHeight*g.scale + statusHeight
}

func main() {
	hz := flag.Int("hz", cpu.DefaultHz, "instructions per second")
	scale := flag.Int("scale", 10, "window pixels per CHIP-8 pixel")
	wrap := flag.Bool("wrap", true, "wrap sprites at the screen edges instead of clipping")
	mute := flag.Bool("mute", false, "disable the sound timer beep")
	debug := flag.Bool("debug", false, "log every executed instruction to stderr")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: desktop [flags] <rom.ch8|source.asm>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if *scale < 1 {
		*scale = 1
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	program, err := utils.ReadROM(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to load program: %v", err)
	}

	vm := cpu.NewCPU()
	vm.SetLogger(logger)
	vm.Wrap = *wrap
	if err := vm.LoadProgram(program); err != nil {
		log.Fatalf("Failed to load program: %v", err)
	}

	var speaker io.Closer
	if !*mute {
		beeper, err := peripherals.NewBeeper(peripherals.BeepFrequency)
		if err != nil {
			slog.Warn("audio unavailable", "err", err)
		} else {
			vm.ConnectSpeaker(beeper)
			speaker = beeper
		}
	}

	game := newGame(vm, *hz, *scale, filepath.Base(flag.Arg(0)))

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(cpu.ScreenWidth**scale, cpu.ScreenHeight**scale+statusHeight)
	ebiten.SetWindowTitle("gochip8")

	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
	if speaker != nil {
		_ = speaker.Close()
	}
}
