package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gochip8/pkg/asm"
	"gochip8/pkg/cpu"
)

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// IsAssemblySource reports whether path names assembly source rather than
// a ROM image.
func IsAssemblySource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".asm", ".s", ".8s":
		return true
	}
	return false
}

// ReadROM loads a program image from path. Assembly sources are assembled
// first. Images that do not fit above 0x200 are rejected.
func ReadROM(path string) ([]byte, error) {
	fullPath, _, err := GetPathInfo(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, err
	}

	if IsAssemblySource(fullPath) {
		data, _, err = asm.Assemble(string(data))
		if err != nil {
			return nil, fmt.Errorf("assemble %s: %w", filepath.Base(fullPath), err)
		}
	}

	if len(data) > cpu.MaxProgramSize {
		return nil, fmt.Errorf("%w: %s is %d bytes > %d bytes",
			cpu.ErrProgramTooLarge, filepath.Base(fullPath), len(data), cpu.MaxProgramSize)
	}
	return data, nil
}
