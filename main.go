//go:build !js

package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gochip8/pkg/asm"
	"gochip8/pkg/cpu"
	"gochip8/pkg/peripherals"
	"gochip8/pkg/utils"
)

type runConfig struct {
	hz         int
	cycles     int
	wrap       bool
	screenshot string
	dump       bool
	logger     *slog.Logger
}

func main() {
	inPath := flag.String("in", "", "input assembly file path")
	outPath := flag.String("out", "", "output binary file path (default: input with .ch8 extension)")
	runProgram := flag.Bool("run", false, "run the generated binary file headlessly")
	runBinPath := flag.String("run-bin", "", "run an existing binary file headlessly")
	hz := flag.Int("hz", cpu.DefaultHz, "instructions per emulated second (timers tick every hz/60 cycles)")
	cycles := flag.Int("cycles", 100000, "maximum number of cycles to execute")
	wrap := flag.Bool("wrap", true, "wrap sprites at the screen edges instead of clipping")
	screenshot := flag.String("screenshot", "", "write the final frame to this PNG file")
	dump := flag.Bool("dump", false, "print the final frame as text")
	debug := flag.Bool("debug", false, "log every executed instruction")
	quiet := flag.Bool("quiet", false, "only log errors")
	flag.Parse()

	logger := createLogger(os.Stderr, *debug, *quiet)
	slog.SetDefault(logger)

	if *runProgram && *runBinPath != "" {
		fmt.Fprintln(os.Stderr, "use either -run or -run-bin, not both")
		os.Exit(2)
	}

	assembledOutput := ""
	if *inPath != "" {
		output := *outPath
		if output == "" {
			output = defaultOutputPath(*inPath)
		}

		n, err := assembleFile(*inPath, output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "assembly failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("assembled %d bytes -> %s\n", n, output)
		assembledOutput = output
	}

	if *inPath == "" && *runBinPath == "" && !*runProgram {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -in to assemble, -run to run assembled output, or -run-bin <file> to run an existing binary")
		flag.Usage()
		os.Exit(2)
	}

	runTarget := ""
	switch {
	case *runBinPath != "":
		runTarget = *runBinPath
	case *runProgram:
		if assembledOutput == "" {
			fmt.Fprintln(os.Stderr, "-run requires -in, or use -run-bin <file>")
			os.Exit(2)
		}
		runTarget = assembledOutput
	default:
		return
	}

	cfg := runConfig{
		hz:         *hz,
		cycles:     *cycles,
		wrap:       *wrap,
		screenshot: *screenshot,
		dump:       *dump,
		logger:     logger,
	}
	vm, display, runErr := runBinary(runTarget, cfg)
	if vm != nil {
		printState(os.Stdout, runTarget, vm)
		if cfg.dump {
			fmt.Print(display.String())
		}
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "run failed for %q: %v\n", runTarget, runErr)
		os.Exit(1)
	}
}

func createLogger(w io.Writer, debug, quiet bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	} else if quiet {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func defaultOutputPath(inPath string) string {
	ext := filepath.Ext(inPath)
	if ext == "" {
		return inPath + ".ch8"
	}
	return strings.TrimSuffix(inPath, ext) + ".ch8"
}

func assembleFile(inPath, outPath string) (int, error) {
	source, err := os.ReadFile(inPath)
	if err != nil {
		return 0, err
	}
	code, _, err := asm.Assemble(string(source))
	if err != nil {
		return 0, err
	}
	if len(code) > cpu.MaxProgramSize {
		return 0, fmt.Errorf("%w: %d bytes", cpu.ErrProgramTooLarge, len(code))
	}
	if err := os.WriteFile(outPath, code, 0o644); err != nil {
		return 0, err
	}
	return len(code), nil
}

// runBinary executes the program at path headlessly for at most cfg.cycles
// cycles. Timers tick once every hz/60 cycles so timing matches a paced run.
func runBinary(path string, cfg runConfig) (*cpu.CPU, *peripherals.Headless, error) {
	program, err := utils.ReadROM(path)
	if err != nil {
		return nil, nil, err
	}

	vm := cpu.NewCPU()
	if cfg.logger != nil {
		vm.SetLogger(cfg.logger)
	}
	vm.Wrap = cfg.wrap
	if err := vm.LoadProgram(program); err != nil {
		return nil, nil, err
	}

	display := peripherals.NewHeadless()
	clock := cpu.NewManualClock()
	vm.ConnectDisplay(display)
	vm.ConnectClock(clock)

	perFrame := max(cfg.hz/cpu.TimerHz, 1)
	var runErr error
	for executed := 0; executed < cfg.cycles; {
		clock.Tick(1)
		want := min(perFrame, cfg.cycles-executed)
		n, err := vm.RunCycles(want)
		executed += n
		display.Flush()
		if err != nil {
			runErr = err
			break
		}
		if n < want {
			break
		}
	}

	if cfg.screenshot != "" {
		if err := vm.SaveScreenshot(cfg.screenshot, 8); err != nil && runErr == nil {
			runErr = err
		}
	}
	return vm, display, runErr
}

func printState(w io.Writer, path string, vm *cpu.CPU) {
	fmt.Fprintf(w,
		"run complete (%s): PC=0x%03X I=0x%03X SP=%d DT=%d ST=%d cycles=%d halted=%t waiting=%t\n",
		path, vm.PC, vm.I, vm.SP, vm.DT, vm.ST, vm.Cycles, vm.Halted, vm.WaitingKey,
	)
	var sb strings.Builder
	for i, v := range vm.V {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "V%X=0x%02X", i, v)
	}
	fmt.Fprintln(w, sb.String())
}
