package opcode

import (
	"errors"
	"testing"
)

func TestDecodeKnownOpcodes(t *testing.T) {
	tests := []struct {
		word uint16
		want Instruction
	}{
		{0x0123, Instruction{Op: OpSys, Addr: 0x123}},
		{0x00E0, Instruction{Op: OpClear}},
		{0x00EE, Instruction{Op: OpReturn}},
		{0x1ABC, Instruction{Op: OpJump, Addr: 0xABC}},
		{0x2456, Instruction{Op: OpCall, Addr: 0x456}},
		{0x3A42, Instruction{Op: OpSkipEqImm, X: 0xA, Imm: 0x42}},
		{0x4B07, Instruction{Op: OpSkipNeqImm, X: 0xB, Imm: 0x07}},
		{0x5120, Instruction{Op: OpSkipEq, X: 1, Y: 2}},
		{0x63FF, Instruction{Op: OpLoadImm, X: 3, Imm: 0xFF}},
		{0x7401, Instruction{Op: OpAddImm, X: 4, Imm: 0x01}},
		{0x8560, Instruction{Op: OpLoadReg, X: 5, Y: 6}},
		{0x8561, Instruction{Op: OpOr, X: 5, Y: 6}},
		{0x8562, Instruction{Op: OpAnd, X: 5, Y: 6}},
		{0x8563, Instruction{Op: OpXor, X: 5, Y: 6}},
		{0x8564, Instruction{Op: OpAdd, X: 5, Y: 6}},
		{0x8565, Instruction{Op: OpSub, X: 5, Y: 6}},
		{0x8566, Instruction{Op: OpShiftR, X: 5, Y: 6}},
		{0x8567, Instruction{Op: OpSubN, X: 5, Y: 6}},
		{0x856E, Instruction{Op: OpShiftL, X: 5, Y: 6}},
		{0x9780, Instruction{Op: OpSkipNeq, X: 7, Y: 8}},
		{0xA2F0, Instruction{Op: OpLoadIndex, Addr: 0x2F0}},
		{0xB300, Instruction{Op: OpJumpV0, Addr: 0x300}},
		{0xC90F, Instruction{Op: OpRand, X: 9, Imm: 0x0F}},
		{0xD125, Instruction{Op: OpDraw, X: 1, Y: 2, N: 5}},
		{0xE39E, Instruction{Op: OpSkipKey, X: 3}},
		{0xE3A1, Instruction{Op: OpSkipNotKey, X: 3}},
		{0xF407, Instruction{Op: OpLoadDelay, X: 4}},
		{0xF40A, Instruction{Op: OpWaitKey, X: 4}},
		{0xF415, Instruction{Op: OpSetDelay, X: 4}},
		{0xF418, Instruction{Op: OpSetSound, X: 4}},
		{0xF41E, Instruction{Op: OpAddIndex, X: 4}},
		{0xF429, Instruction{Op: OpLoadFont, X: 4}},
		{0xF433, Instruction{Op: OpStoreBCD, X: 4}},
		{0xF455, Instruction{Op: OpStoreRegs, X: 4}},
		{0xF465, Instruction{Op: OpLoadRegs, X: 4}},
	}

	if len(tests) != Count {
		t.Fatalf("table covers %d ops, expected %d", len(tests), Count)
	}

	for _, tc := range tests {
		got, err := Decode(tc.word)
		if err != nil {
			t.Errorf("Decode(0x%04X): unexpected error %v", tc.word, err)
			continue
		}
		if got.Op != tc.want.Op {
			t.Errorf("Decode(0x%04X): expected op %v, got %v", tc.word, tc.want.Op, got.Op)
		}
		if got.Word != tc.word {
			t.Errorf("Decode(0x%04X): expected Word 0x%04X, got 0x%04X", tc.word, tc.word, got.Word)
		}

		switch tc.want.Op {
		case OpSys, OpJump, OpCall, OpLoadIndex, OpJumpV0:
			if got.Addr != tc.want.Addr {
				t.Errorf("Decode(0x%04X): expected addr 0x%03X, got 0x%03X", tc.word, tc.want.Addr, got.Addr)
			}
		case OpClear, OpReturn:
		default:
			if got.X != tc.want.X {
				t.Errorf("Decode(0x%04X): expected X=%d, got %d", tc.word, tc.want.X, got.X)
			}
		}

		switch tc.want.Op {
		case OpSkipEqImm, OpSkipNeqImm, OpLoadImm, OpAddImm, OpRand:
			if got.Imm != tc.want.Imm {
				t.Errorf("Decode(0x%04X): expected imm 0x%02X, got 0x%02X", tc.word, tc.want.Imm, got.Imm)
			}
		case OpDraw:
			if got.Y != tc.want.Y || got.N != tc.want.N {
				t.Errorf("Decode(0x%04X): expected Y=%d N=%d, got Y=%d N=%d", tc.word, tc.want.Y, tc.want.N, got.Y, got.N)
			}
		case OpSkipEq, OpSkipNeq, OpLoadReg, OpOr, OpAnd, OpXor, OpAdd, OpSub, OpSubN:
			if got.Y != tc.want.Y {
				t.Errorf("Decode(0x%04X): expected Y=%d, got %d", tc.word, tc.want.Y, got.Y)
			}
		}

		if enc := got.Encode(); enc != tc.word {
			t.Errorf("Encode(Decode(0x%04X)) = 0x%04X", tc.word, enc)
		}
	}
}

func TestDecodeUnknownOpcodes(t *testing.T) {
	words := []uint16{0x8008, 0x800F, 0x8ABD, 0x9001, 0x912F, 0xE000, 0xE19F, 0xF000, 0xF1FF, 0xF356}
	for _, w := range words {
		inst, err := Decode(w)
		if !errors.Is(err, ErrUnknownOpcode) {
			t.Errorf("Decode(0x%04X): expected ErrUnknownOpcode, got %v", w, err)
		}
		if inst.Op != OpUnknown {
			t.Errorf("Decode(0x%04X): expected OpUnknown, got %v", w, inst.Op)
		}
	}
}

func TestDecodeFamiliesExhaustive(t *testing.T) {
	// Families 8/9/E/F: anything outside the documented secondary codes is unknown.
	valid8 := map[uint16]bool{0x0: true, 0x1: true, 0x2: true, 0x3: true, 0x4: true, 0x5: true, 0x6: true, 0x7: true, 0xE: true}
	validEF := map[uint16]bool{0xE09E: true, 0xE0A1: true,
		0xF007: true, 0xF00A: true, 0xF015: true, 0xF018: true, 0xF01E: true,
		0xF029: true, 0xF033: true, 0xF055: true, 0xF065: true}

	for w := 0; w <= 0xFFFF; w++ {
		word := uint16(w)
		inst, err := Decode(word)

		var wantKnown bool
		switch word & 0xF000 {
		case 0x8000:
			wantKnown = valid8[word&0xF]
		case 0x9000:
			wantKnown = word&0xF == 0
		case 0xE000, 0xF000:
			wantKnown = validEF[word&0xF0FF]
		default:
			wantKnown = true
		}

		if wantKnown && err != nil {
			t.Fatalf("Decode(0x%04X): unexpected error %v", word, err)
		}
		if !wantKnown && inst.Op != OpUnknown {
			t.Fatalf("Decode(0x%04X): expected OpUnknown, got %v", word, inst.Op)
		}
	}
}

func TestFromBytes(t *testing.T) {
	if got := FromBytes(0xD1, 0x25); got != 0xD125 {
		t.Errorf("FromBytes(0xD1, 0x25): expected 0xD125, got 0x%04X", got)
	}
}

func TestInstructionString(t *testing.T) {
	tests := []struct {
		word uint16
		want string
	}{
		{0x00E0, "CLS"},
		{0x00EE, "RET"},
		{0x0123, "SYS $123"},
		{0x1200, "JP $200"},
		{0x2ABC, "CALL $ABC"},
		{0x310A, "SE V1, $0A"},
		{0x5AB0, "SE VA, VB"},
		{0x6F01, "LD VF, $01"},
		{0x8014, "ADD V0, V1"},
		{0x8016, "SHR V0"},
		{0xA050, "LD I, $050"},
		{0xB210, "JP V0, $210"},
		{0xD015, "DRW V0, V1, $5"},
		{0xE59E, "SKP V5"},
		{0xE5A1, "SKNP V5"},
		{0xF207, "LD V2, DT"},
		{0xF20A, "LD V2, K"},
		{0xF215, "LD DT, V2"},
		{0xF218, "LD ST, V2"},
		{0xF21E, "ADD I, V2"},
		{0xF229, "LD F, V2"},
		{0xF233, "LD B, V2"},
		{0xF255, "LD [I], V2"},
		{0xF265, "LD V2, [I]"},
		{0xFFFF, "DW $FFFF"},
	}
	for _, tc := range tests {
		inst, _ := Decode(tc.word)
		if got := inst.String(); got != tc.want {
			t.Errorf("Decode(0x%04X).String() = %q; want %q", tc.word, got, tc.want)
		}
	}
}

func TestInstructionClassification(t *testing.T) {
	skip, _ := Decode(0x3000)
	if !skip.IsSkip() || skip.IsJump() {
		t.Errorf("SE Vx, kk: expected skip, not jump")
	}
	jump, _ := Decode(0xB123)
	if !jump.IsJump() || jump.IsSkip() {
		t.Errorf("JP V0, addr: expected jump, not skip")
	}
	call, _ := Decode(0x2123)
	if call.IsJump() || call.IsSkip() {
		t.Errorf("CALL: expected neither jump nor skip")
	}
}
