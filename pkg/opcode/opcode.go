// Package opcode decodes and encodes CHIP-8 instruction words.
//
// Every instruction is a big-endian 16-bit word. Decoding branches on the
// high nibble (the instruction family) and, for families 0x0, 0x8, 0x9, 0xE
// and 0xF, on the low nibble or low byte.
package opcode

import (
	"errors"
	"fmt"
)

// ErrUnknownOpcode is returned by Decode for words that match no instruction.
var ErrUnknownOpcode = errors.New("unknown opcode")

// Op identifies an instruction shape.
type Op uint8

const (
	OpUnknown Op = iota
	OpSys
	OpClear
	OpReturn
	OpJump
	OpCall
	OpSkipEqImm
	OpSkipNeqImm
	OpSkipEq
	OpLoadImm
	OpAddImm
	OpLoadReg
	OpOr
	OpAnd
	OpXor
	OpAdd
	OpSub
	OpShiftR
	OpSubN
	OpShiftL
	OpSkipNeq
	OpLoadIndex
	OpJumpV0
	OpRand
	OpDraw
	OpSkipKey
	OpSkipNotKey
	OpLoadDelay
	OpWaitKey
	OpSetDelay
	OpSetSound
	OpAddIndex
	OpLoadFont
	OpStoreBCD
	OpStoreRegs
	OpLoadRegs

	opCount
)

// Count is the number of known instruction shapes, excluding OpUnknown.
const Count = int(opCount) - 1

var opNames = [opCount]string{
	OpUnknown:    "UNKNOWN",
	OpSys:        "SYS",
	OpClear:      "CLS",
	OpReturn:     "RET",
	OpJump:       "JP",
	OpCall:       "CALL",
	OpSkipEqImm:  "SE",
	OpSkipNeqImm: "SNE",
	OpSkipEq:     "SE",
	OpLoadImm:    "LD",
	OpAddImm:     "ADD",
	OpLoadReg:    "LD",
	OpOr:         "OR",
	OpAnd:        "AND",
	OpXor:        "XOR",
	OpAdd:        "ADD",
	OpSub:        "SUB",
	OpShiftR:     "SHR",
	OpSubN:       "SUBN",
	OpShiftL:     "SHL",
	OpSkipNeq:    "SNE",
	OpLoadIndex:  "LD",
	OpJumpV0:     "JP",
	OpRand:       "RND",
	OpDraw:       "DRW",
	OpSkipKey:    "SKP",
	OpSkipNotKey: "SKNP",
	OpLoadDelay:  "LD",
	OpWaitKey:    "LD",
	OpSetDelay:   "LD",
	OpSetSound:   "LD",
	OpAddIndex:   "ADD",
	OpLoadFont:   "LD",
	OpStoreBCD:   "LD",
	OpStoreRegs:  "LD",
	OpLoadRegs:   "LD",
}

// Mnemonic returns the assembler mnemonic of the op.
func (o Op) Mnemonic() string {
	if o >= opCount {
		return opNames[OpUnknown]
	}
	return opNames[o]
}

// Instruction is a decoded instruction word. Only the operand fields that
// belong to Op are meaningful; Word always holds the raw value.
type Instruction struct {
	Op   Op
	Word uint16
	Addr uint16
	X    uint8
	Y    uint8
	Imm  uint8
	N    uint8
}

// FromBytes joins two memory bytes into a big-endian instruction word.
func FromBytes(hi, lo byte) uint16 {
	return uint16(hi)<<8 | uint16(lo)
}

// Decode turns a 16-bit word into an Instruction. It never panics; words that
// match no instruction yield an OpUnknown instruction and an error wrapping
// ErrUnknownOpcode.
func Decode(word uint16) (Instruction, error) {
	inst := Instruction{
		Word: word,
		Addr: word & 0x0FFF,
		X:    uint8(word>>8) & 0xF,
		Y:    uint8(word>>4) & 0xF,
		Imm:  uint8(word & 0xFF),
		N:    uint8(word & 0xF),
	}

	switch word & 0xF000 {
	case 0x0000:
		switch word {
		case 0x00E0:
			inst.Op = OpClear
		case 0x00EE:
			inst.Op = OpReturn
		default:
			inst.Op = OpSys
		}
	case 0x1000:
		inst.Op = OpJump
	case 0x2000:
		inst.Op = OpCall
	case 0x3000:
		inst.Op = OpSkipEqImm
	case 0x4000:
		inst.Op = OpSkipNeqImm
	case 0x5000:
		// 5XY0 only; the original interpreters ignored the low nibble.
		inst.Op = OpSkipEq
	case 0x6000:
		inst.Op = OpLoadImm
	case 0x7000:
		inst.Op = OpAddImm
	case 0x8000:
		switch word & 0x000F {
		case 0x0:
			inst.Op = OpLoadReg
		case 0x1:
			inst.Op = OpOr
		case 0x2:
			inst.Op = OpAnd
		case 0x3:
			inst.Op = OpXor
		case 0x4:
			inst.Op = OpAdd
		case 0x5:
			inst.Op = OpSub
		case 0x6:
			inst.Op = OpShiftR
		case 0x7:
			inst.Op = OpSubN
		case 0xE:
			inst.Op = OpShiftL
		}
	case 0x9000:
		if word&0x000F == 0 {
			inst.Op = OpSkipNeq
		}
	case 0xA000:
		inst.Op = OpLoadIndex
	case 0xB000:
		inst.Op = OpJumpV0
	case 0xC000:
		inst.Op = OpRand
	case 0xD000:
		inst.Op = OpDraw
	case 0xE000:
		switch word & 0x00FF {
		case 0x9E:
			inst.Op = OpSkipKey
		case 0xA1:
			inst.Op = OpSkipNotKey
		}
	case 0xF000:
		switch word & 0x00FF {
		case 0x07:
			inst.Op = OpLoadDelay
		case 0x0A:
			inst.Op = OpWaitKey
		case 0x15:
			inst.Op = OpSetDelay
		case 0x18:
			inst.Op = OpSetSound
		case 0x1E:
			inst.Op = OpAddIndex
		case 0x29:
			inst.Op = OpLoadFont
		case 0x33:
			inst.Op = OpStoreBCD
		case 0x55:
			inst.Op = OpStoreRegs
		case 0x65:
			inst.Op = OpLoadRegs
		}
	}

	if inst.Op == OpUnknown {
		return inst, fmt.Errorf("%w: 0x%04X", ErrUnknownOpcode, word)
	}
	return inst, nil
}

func xy(base uint16, x, y uint8) uint16 {
	return base | uint16(x&0xF)<<8 | uint16(y&0xF)<<4
}

func xkk(base uint16, x, kk uint8) uint16 {
	return base | uint16(x&0xF)<<8 | uint16(kk)
}

// Encode builds the instruction word for inst from its Op and operands.
// Unknown instructions return Word unchanged.
func (inst Instruction) Encode() uint16 {
	addr := inst.Addr & 0x0FFF
	switch inst.Op {
	case OpSys:
		return addr
	case OpClear:
		return 0x00E0
	case OpReturn:
		return 0x00EE
	case OpJump:
		return 0x1000 | addr
	case OpCall:
		return 0x2000 | addr
	case OpSkipEqImm:
		return xkk(0x3000, inst.X, inst.Imm)
	case OpSkipNeqImm:
		return xkk(0x4000, inst.X, inst.Imm)
	case OpSkipEq:
		return xy(0x5000, inst.X, inst.Y)
	case OpLoadImm:
		return xkk(0x6000, inst.X, inst.Imm)
	case OpAddImm:
		return xkk(0x7000, inst.X, inst.Imm)
	case OpLoadReg:
		return xy(0x8000, inst.X, inst.Y)
	case OpOr:
		return xy(0x8001, inst.X, inst.Y)
	case OpAnd:
		return xy(0x8002, inst.X, inst.Y)
	case OpXor:
		return xy(0x8003, inst.X, inst.Y)
	case OpAdd:
		return xy(0x8004, inst.X, inst.Y)
	case OpSub:
		return xy(0x8005, inst.X, inst.Y)
	case OpShiftR:
		return xy(0x8006, inst.X, inst.Y)
	case OpSubN:
		return xy(0x8007, inst.X, inst.Y)
	case OpShiftL:
		return xy(0x800E, inst.X, inst.Y)
	case OpSkipNeq:
		return xy(0x9000, inst.X, inst.Y)
	case OpLoadIndex:
		return 0xA000 | addr
	case OpJumpV0:
		return 0xB000 | addr
	case OpRand:
		return xkk(0xC000, inst.X, inst.Imm)
	case OpDraw:
		return xy(0xD000, inst.X, inst.Y) | uint16(inst.N&0xF)
	case OpSkipKey:
		return xkk(0xE000, inst.X, 0x9E)
	case OpSkipNotKey:
		return xkk(0xE000, inst.X, 0xA1)
	case OpLoadDelay:
		return xkk(0xF000, inst.X, 0x07)
	case OpWaitKey:
		return xkk(0xF000, inst.X, 0x0A)
	case OpSetDelay:
		return xkk(0xF000, inst.X, 0x15)
	case OpSetSound:
		return xkk(0xF000, inst.X, 0x18)
	case OpAddIndex:
		return xkk(0xF000, inst.X, 0x1E)
	case OpLoadFont:
		return xkk(0xF000, inst.X, 0x29)
	case OpStoreBCD:
		return xkk(0xF000, inst.X, 0x33)
	case OpStoreRegs:
		return xkk(0xF000, inst.X, 0x55)
	case OpLoadRegs:
		return xkk(0xF000, inst.X, 0x65)
	}
	return inst.Word
}

// IsSkip reports whether the instruction conditionally skips the next one.
func (inst Instruction) IsSkip() bool {
	switch inst.Op {
	case OpSkipEqImm, OpSkipNeqImm, OpSkipEq, OpSkipNeq, OpSkipKey, OpSkipNotKey:
		return true
	}
	return false
}

// IsJump reports whether the instruction unconditionally transfers control.
func (inst Instruction) IsJump() bool {
	return inst.Op == OpJump || inst.Op == OpJumpV0
}

// String formats the instruction in Cowgod's mnemonic syntax.
func (inst Instruction) String() string {
	name := inst.Op.Mnemonic()
	switch inst.Op {
	case OpClear, OpReturn:
		return name
	case OpSys, OpJump, OpCall:
		return fmt.Sprintf("%s $%03X", name, inst.Addr)
	case OpSkipEqImm, OpSkipNeqImm, OpLoadImm, OpAddImm, OpRand:
		return fmt.Sprintf("%s V%X, $%02X", name, inst.X, inst.Imm)
	case OpSkipEq, OpSkipNeq, OpLoadReg, OpOr, OpAnd, OpXor, OpAdd, OpSub, OpSubN:
		return fmt.Sprintf("%s V%X, V%X", name, inst.X, inst.Y)
	case OpShiftR, OpShiftL, OpSkipKey, OpSkipNotKey:
		return fmt.Sprintf("%s V%X", name, inst.X)
	case OpLoadIndex:
		return fmt.Sprintf("LD I, $%03X", inst.Addr)
	case OpJumpV0:
		return fmt.Sprintf("JP V0, $%03X", inst.Addr)
	case OpDraw:
		return fmt.Sprintf("DRW V%X, V%X, $%X", inst.X, inst.Y, inst.N)
	case OpLoadDelay:
		return fmt.Sprintf("LD V%X, DT", inst.X)
	case OpWaitKey:
		return fmt.Sprintf("LD V%X, K", inst.X)
	case OpSetDelay:
		return fmt.Sprintf("LD DT, V%X", inst.X)
	case OpSetSound:
		return fmt.Sprintf("LD ST, V%X", inst.X)
	case OpAddIndex:
		return fmt.Sprintf("ADD I, V%X", inst.X)
	case OpLoadFont:
		return fmt.Sprintf("LD F, V%X", inst.X)
	case OpStoreBCD:
		return fmt.Sprintf("LD B, V%X", inst.X)
	case OpStoreRegs:
		return fmt.Sprintf("LD [I], V%X", inst.X)
	case OpLoadRegs:
		return fmt.Sprintf("LD V%X, [I]", inst.X)
	}
	return fmt.Sprintf("DW $%04X", inst.Word)
}
