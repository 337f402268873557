// Package asm is a two-pass assembler for CHIP-8 programs written in
// Cowgod's mnemonic syntax.
package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"gochip8/pkg/cpu"
	"gochip8/pkg/opcode"
)

type operandKind uint8

const (
	kindValue operandKind = iota
	kindReg
	kindI
	kindIndirect
	kindDT
	kindST
	kindK
	kindF
	kindB
)

type form struct {
	op    opcode.Op
	kinds []operandKind
}

var (
	noOperands = []operandKind{}
	val        = []operandKind{kindValue}
	reg        = []operandKind{kindReg}
	regVal     = []operandKind{kindReg, kindValue}
	regReg     = []operandKind{kindReg, kindReg}
)

// forms lists the accepted operand shapes per mnemonic.
var forms = map[string][]form{
	"CLS":  {{opcode.OpClear, noOperands}},
	"RET":  {{opcode.OpReturn, noOperands}},
	"SYS":  {{opcode.OpSys, val}},
	"JP":   {{opcode.OpJump, val}, {opcode.OpJumpV0, regVal}},
	"CALL": {{opcode.OpCall, val}},
	"SE":   {{opcode.OpSkipEqImm, regVal}, {opcode.OpSkipEq, regReg}},
	"SNE":  {{opcode.OpSkipNeqImm, regVal}, {opcode.OpSkipNeq, regReg}},
	"LD": {
		{opcode.OpLoadImm, regVal},
		{opcode.OpLoadReg, regReg},
		{opcode.OpLoadIndex, []operandKind{kindI, kindValue}},
		{opcode.OpLoadDelay, []operandKind{kindReg, kindDT}},
		{opcode.OpWaitKey, []operandKind{kindReg, kindK}},
		{opcode.OpSetDelay, []operandKind{kindDT, kindReg}},
		{opcode.OpSetSound, []operandKind{kindST, kindReg}},
		{opcode.OpLoadFont, []operandKind{kindF, kindReg}},
		{opcode.OpStoreBCD, []operandKind{kindB, kindReg}},
		{opcode.OpStoreRegs, []operandKind{kindIndirect, kindReg}},
		{opcode.OpLoadRegs, []operandKind{kindReg, kindIndirect}},
	},
	"ADD": {
		{opcode.OpAddImm, regVal},
		{opcode.OpAdd, regReg},
		{opcode.OpAddIndex, []operandKind{kindI, kindReg}},
	},
	"OR":   {{opcode.OpOr, regReg}},
	"AND":  {{opcode.OpAnd, regReg}},
	"XOR":  {{opcode.OpXor, regReg}},
	"SUB":  {{opcode.OpSub, regReg}},
	"SUBN": {{opcode.OpSubN, regReg}},
	"SHR":  {{opcode.OpShiftR, reg}, {opcode.OpShiftR, regReg}},
	"SHL":  {{opcode.OpShiftL, reg}, {opcode.OpShiftL, regReg}},
	"RND":  {{opcode.OpRand, regVal}},
	"DRW":  {{opcode.OpDraw, []operandKind{kindReg, kindReg, kindValue}}},
	"SKP":  {{opcode.OpSkipKey, reg}},
	"SKNP": {{opcode.OpSkipNotKey, reg}},
}

var keywords = map[string]operandKind{
	"I":   kindI,
	"[I]": kindIndirect,
	"DT":  kindDT,
	"ST":  kindST,
	"K":   kindK,
	"F":   kindF,
	"B":   kindB,
}

type Assembler struct {
	labels map[string]uint16
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]uint16),
	}
}

// Assemble translates code into a ROM image to be loaded at 0x200. The
// source map keys are absolute addresses.
func Assemble(code string) ([]byte, map[uint16]int, error) {
	return NewAssembler().Assemble(code)
}

// Assemble translates code into a ROM image. Labels from an earlier call on
// the same Assembler are discarded.
func (a *Assembler) Assemble(code string) ([]byte, map[uint16]int, error) {
	a.labels = make(map[string]uint16)
	lines := strings.Split(code, "\n")

	if err := a.pass1(lines); err != nil {
		return nil, nil, err
	}

	return a.pass2(lines)
}

// Labels returns the resolved label addresses, keyed by upper-case name.
func (a *Assembler) Labels() map[string]uint16 {
	return a.labels
}

func (a *Assembler) pass1(lines []string) error {
	address := uint32(cpu.ProgramStart)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		for _, lbl := range p.labels {
			key := normalizeLabel(lbl)
			if _, reserved := keywords[key]; reserved || isRegister(key) {
				return fmt.Errorf("label '%s' on line %d shadows a register", lbl, lineNo)
			}
			if _, exists := a.labels[key]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			a.labels[key] = uint16(address)
		}

		if p.mnemonic == "" {
			continue
		}

		var length uint32
		switch p.mnemonic {
		case ".ORG":
			target, err := parseNumber(p.operands[0])
			if err != nil {
				return fmt.Errorf("invalid .ORG value on line %d: %s", lineNo, p.operands[0])
			}
			if target < cpu.ProgramStart || target >= cpu.MemorySize {
				return fmt.Errorf(".ORG out of range on line %d: %s", lineNo, p.operands[0])
			}
			if uint32(target) < address {
				return fmt.Errorf("cannot move origin backward on line %d", lineNo)
			}
			address = uint32(target)
			continue
		case "DB":
			length = uint32(len(p.operands))
		case "DW":
			length = uint32(len(p.operands) * 2)
		default:
			l, ok := instructionLength(p.mnemonic)
			if !ok {
				return fmt.Errorf("unknown instruction on line %d: %s", lineNo, p.mnemonic)
			}
			length = uint32(l)
		}

		if length == 0 {
			return fmt.Errorf("%s expects at least one operand on line %d", p.mnemonic, lineNo)
		}
		if address+length > cpu.MemorySize {
			return fmt.Errorf("program too large near line %d", lineNo)
		}
		address += length
	}

	return nil
}

func (a *Assembler) pass2(lines []string) ([]byte, map[uint16]int, error) {
	program := make([]byte, 0)
	sourceMap := make(map[uint16]int)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, nil, err
		}

		if p.mnemonic == "" {
			continue
		}

		mnemonic := p.mnemonic
		ops := p.operands

		if mnemonic == ".ORG" {
			target, _ := parseNumber(ops[0])
			padding := int(target) - cpu.ProgramStart - len(program)
			if padding > 0 {
				program = append(program, make([]byte, padding)...)
			}
			continue
		}

		sourceMap[uint16(cpu.ProgramStart+len(program))] = lineNo

		switch mnemonic {
		case "DB":
			for _, op := range ops {
				v, err := a.parseValue(op, 0xFF, lineNo)
				if err != nil {
					return nil, nil, err
				}
				program = append(program, byte(v))
			}
			continue
		case "DW":
			for _, op := range ops {
				v, err := a.parseValue(op, 0xFFFF, lineNo)
				if err != nil {
					return nil, nil, err
				}
				program = append(program, byte(v>>8), byte(v))
			}
			continue
		}

		inst, err := a.encode(mnemonic, ops, lineNo)
		if err != nil {
			return nil, nil, err
		}
		word := inst.Encode()
		program = append(program, byte(word>>8), byte(word))
	}

	return program, sourceMap, nil
}

// encode picks the form of mnemonic matching the operand kinds and fills in
// the instruction fields.
func (a *Assembler) encode(mnemonic string, ops []string, lineNo int) (opcode.Instruction, error) {
	kinds := make([]operandKind, len(ops))
	for i, op := range ops {
		kinds[i] = classify(op)
	}

	var match *form
	for i := range forms[mnemonic] {
		f := &forms[mnemonic][i]
		if kindsEqual(f.kinds, kinds) {
			match = f
			break
		}
	}
	if match == nil {
		return opcode.Instruction{}, fmt.Errorf("invalid operands for %s on line %d: %s",
			mnemonic, lineNo, strings.Join(ops, ", "))
	}

	inst := opcode.Instruction{Op: match.op}
	regs := 0
	for i, op := range ops {
		switch kinds[i] {
		case kindReg:
			r := parseRegister(op)
			if match.op == opcode.OpJumpV0 {
				if r != 0 {
					return inst, fmt.Errorf("JP with offset requires V0 on line %d", lineNo)
				}
				continue
			}
			if regs == 0 {
				inst.X = r
			} else {
				inst.Y = r
			}
			regs++
		case kindValue:
			if err := a.setValue(&inst, op, lineNo); err != nil {
				return inst, err
			}
		}
	}
	return inst, nil
}

func (a *Assembler) setValue(inst *opcode.Instruction, token string, lineNo int) error {
	switch inst.Op {
	case opcode.OpSys, opcode.OpJump, opcode.OpCall, opcode.OpLoadIndex, opcode.OpJumpV0:
		v, err := a.parseValue(token, 0xFFF, lineNo)
		inst.Addr = v
		return err
	case opcode.OpDraw:
		v, err := a.parseValue(token, 0xF, lineNo)
		inst.N = uint8(v)
		return err
	default:
		v, err := a.parseValue(token, 0xFF, lineNo)
		inst.Imm = uint8(v)
		return err
	}
}

func kindsEqual(a, b []operandKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func classify(token string) operandKind {
	upper := strings.ToUpper(token)
	if kind, ok := keywords[upper]; ok {
		return kind
	}
	if isRegister(upper) {
		return kindReg
	}
	return kindValue
}

func isRegister(token string) bool {
	if len(token) != 2 || (token[0] != 'V' && token[0] != 'v') {
		return false
	}
	_, err := strconv.ParseUint(token[1:], 16, 4)
	return err == nil
}

func parseRegister(token string) uint8 {
	r, _ := strconv.ParseUint(token[1:], 16, 4)
	return uint8(r)
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(beforeColon, " \t") {
			break
		}

		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	line = normalizeInstructionText(line)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return p, nil
	}

	p.mnemonic = strings.ToUpper(fields[0])
	if len(fields) > 1 {
		p.operands = fields[1:]
	}

	switch p.mnemonic {
	case ".BYTE":
		p.mnemonic = "DB"
	case ".WORD":
		p.mnemonic = "DW"
	case ".ORG":
		if len(p.operands) != 1 {
			return p, fmt.Errorf(".ORG expects exactly one operand on line %d", lineNo)
		}
	}

	return p, nil
}

func stripComments(line string) string {
	semicolon := strings.Index(line, ";")
	doubleSlash := strings.Index(line, "//")

	cut := -1
	if semicolon >= 0 {
		cut = semicolon
	}
	if doubleSlash >= 0 && (cut == -1 || doubleSlash < cut) {
		cut = doubleSlash
	}
	if cut >= 0 {
		return line[:cut]
	}
	return line
}

func normalizeInstructionText(line string) string {
	return strings.ReplaceAll(line, ",", " ")
}

// parseNumber accepts decimal, 0x/$/# hexadecimal and 0b binary literals.
func parseNumber(token string) (uint64, error) {
	switch {
	case strings.HasPrefix(token, "$"), strings.HasPrefix(token, "#"):
		return strconv.ParseUint(token[1:], 16, 32)
	case len(token) > 2 && token[0] == '0' && (token[1] == 'x' || token[1] == 'X'):
		return strconv.ParseUint(token[2:], 16, 32)
	case len(token) > 2 && token[0] == '0' && (token[1] == 'b' || token[1] == 'B'):
		return strconv.ParseUint(token[2:], 2, 32)
	}
	return strconv.ParseUint(token, 10, 32)
}

// parseValue resolves a number or label and checks it fits in limit.
func (a *Assembler) parseValue(token string, limit uint16, lineNo int) (uint16, error) {
	if value, err := parseNumber(token); err == nil {
		if value > uint64(limit) {
			return 0, fmt.Errorf("value out of range on line %d: %s (max 0x%X)", lineNo, token, limit)
		}
		return uint16(value), nil
	}

	label := normalizeLabel(token)
	if addr, ok := a.labels[label]; ok {
		if addr > limit {
			return 0, fmt.Errorf("label '%s' out of range on line %d", token, lineNo)
		}
		return addr, nil
	}

	if isIdentifier(token) {
		return 0, fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
	}

	return 0, fmt.Errorf("invalid value '%s' on line %d", token, lineNo)
}

// instructionLength returns the byte length of an instruction. Every CHIP-8
// instruction is one 2-byte word.
func instructionLength(mnemonic string) (uint16, bool) {
	if _, ok := forms[strings.ToUpper(mnemonic)]; ok {
		return 2, true
	}
	return 0, false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

func normalizeLabel(label string) string {
	return strings.ToUpper(label)
}
