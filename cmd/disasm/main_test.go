package main

import (
	"strings"
	"testing"
)

func TestDisassemble(t *testing.T) {
	program := []byte{
		0x00, 0xE0, // CLS
		0x30, 0x01, // SE V0, $01
		0x12, 0x00, // JP $200
		0x22, 0x0A, // CALL $20A
		0xFF, 0xFF, // unknown
		0x00, 0xEE, // RET
		0xAB, // trailing byte
	}

	var sb strings.Builder
	if err := disassemble(&sb, program, true); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"L200:",
		"200  00E0  CLS",
		"202  3001  SE V0, $01",
		"204  1200    JP $200",
		"206  220A  CALL $20A",
		"208  FFFF  DW $FFFF",
		"L20A:",
		"20A  00EE  RET",
		"20C  AB    DB $AB",
	}
	got := strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(got), sb.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestDisassembleWithoutLabels(t *testing.T) {
	var sb strings.Builder
	if err := disassemble(&sb, []byte{0x12, 0x00}, false); err != nil {
		t.Fatal(err)
	}
	if sb.String() != "200  1200  JP $200\n\n" {
		t.Errorf("unexpected listing %q", sb.String())
	}
}
