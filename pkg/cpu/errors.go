package cpu

import (
	"errors"
	"fmt"
)

var (
	ErrProgramTooLarge = errors.New("program too large for memory")
	ErrStackOverflow   = errors.New("stack overflow")
	ErrStackUnderflow  = errors.New("stack underflow")
	ErrOutOfBounds     = errors.New("memory access out of bounds")
	ErrHalted          = errors.New("cpu halted")
)

// ExecError is a fatal execution error tagged with the faulting instruction.
type ExecError struct {
	PC   uint16
	Word uint16
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("pc=0x%03X opcode=0x%04X: %v", e.PC, e.Word, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
