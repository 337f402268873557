package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"gochip8/pkg/cpu"
	"gochip8/pkg/opcode"
	"gochip8/pkg/utils"
)

// targets collects the addresses reached by JP and CALL.
func targets(program []byte) map[uint16]bool {
	out := make(map[uint16]bool)
	for i := 0; i+1 < len(program); i += 2 {
		inst, err := opcode.Decode(opcode.FromBytes(program[i], program[i+1]))
		if err != nil {
			continue
		}
		if inst.Op == opcode.OpJump || inst.Op == opcode.OpCall {
			out[inst.Addr] = true
		}
	}
	return out
}

// disassemble writes one line per word: address, raw word and mnemonic.
// Instructions guarded by a skip are indented. An unguarded jump ends a block
// with a blank line.
func disassemble(w io.Writer, program []byte, labels bool) error {
	var marks map[uint16]bool
	if labels {
		marks = targets(program)
	}

	guarded := false
	for i := 0; i < len(program); i += 2 {
		addr := uint16(cpu.ProgramStart + i)
		if marks[addr] {
			if _, err := fmt.Fprintf(w, "L%03X:\n", addr); err != nil {
				return err
			}
		}

		if i+1 >= len(program) {
			_, err := fmt.Fprintf(w, "%03X  %02X    DB $%02X\n", addr, program[i], program[i])
			return err
		}

		word := opcode.FromBytes(program[i], program[i+1])
		inst, _ := opcode.Decode(word)
		indent := "  "
		if guarded {
			indent = "    "
		}
		if _, err := fmt.Fprintf(w, "%03X  %04X%s%s\n", addr, word, indent, inst.String()); err != nil {
			return err
		}
		if inst.IsJump() && !guarded {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		guarded = inst.IsSkip()
	}
	return nil
}

func main() {
	labels := flag.Bool("labels", true, "emit a label line before jump and call targets")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: disasm [flags] <rom.ch8>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	program, err := utils.ReadROM(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to load program: %v", err)
	}

	var sb strings.Builder
	if err := disassemble(&sb, program, *labels); err != nil {
		log.Fatal(err)
	}
	fmt.Print(sb.String())
}
