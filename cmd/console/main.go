//go:build unix

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"gochip8/pkg/cpu"
	"gochip8/pkg/peripherals"
	"gochip8/pkg/utils"
)

type options struct {
	hz      int
	hold    time.Duration
	wrap    bool
	mute    bool
	logPath string
	debug   bool
}

// run executes vm against term until Esc, a signal or a fatal error. The
// timer clock runs on its own goroutine and is stopped with the VM.
func run(ctx context.Context, vm *cpu.CPU, term *peripherals.Terminal, hz int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	clock := cpu.NewTimerClock(cpu.TimerHz)
	vm.ConnectClock(clock)
	vm.ConnectDisplay(term)
	vm.ConnectInput(term)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return vm.Run(gctx, hz)
	})
	g.Go(func() error {
		<-gctx.Done()
		clock.Stop()
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func openLog(path string, debug bool) (*slog.Logger, io.Closer, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})), f, nil
}

func main() {
	var opts options
	flag.IntVar(&opts.hz, "hz", cpu.DefaultHz, "instructions per second")
	flag.DurationVar(&opts.hold, "hold", peripherals.DefaultHold, "how long a key stays down after its last repeat")
	flag.BoolVar(&opts.wrap, "wrap", true, "wrap sprites at the screen edges instead of clipping")
	flag.BoolVar(&opts.mute, "mute", false, "disable the sound timer beep")
	flag.StringVar(&opts.logPath, "log", "gochip8.log", "log file (the terminal is used for video)")
	flag.BoolVar(&opts.debug, "debug", false, "log every executed instruction")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: console [flags] <rom.ch8|source.asm>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	logger, logFile, err := openLog(opts.logPath, opts.debug)
	if err != nil {
		log.Fatalf("Failed to open log: %v", err)
	}
	defer logFile.Close()
	slog.SetDefault(logger)

	program, err := utils.ReadROM(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to load program: %v", err)
	}

	vm := cpu.NewCPU()
	vm.SetLogger(logger)
	vm.Wrap = opts.wrap
	if err := vm.LoadProgram(program); err != nil {
		log.Fatalf("Failed to load program: %v", err)
	}

	if !opts.mute {
		if beeper, err := peripherals.NewBeeper(peripherals.BeepFrequency); err != nil {
			logger.Warn("audio unavailable", "err", err)
		} else {
			vm.ConnectSpeaker(beeper)
			defer beeper.Close()
		}
	}

	term := peripherals.NewTerminal(os.Stdout, opts.hold)
	if err := term.Start(); err != nil {
		log.Fatalf("Failed to start terminal: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, vm, term, opts.hz)
	stop()
	term.Stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "execution stopped: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("stopped after %d cycles\n", vm.Cycles)
}
