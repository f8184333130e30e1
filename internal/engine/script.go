package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Script is a filtered command file ready for playback.
type Script struct {
	Name  string
	Lines []string
}

// ParseScript keeps one command per line, dropping blank lines and lines
// starting with #.
func ParseScript(name, content string) *Script {
	s := &Script{Name: name}
	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		s.Lines = append(s.Lines, t)
	}
	return s
}

func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return ParseScript(filepath.Base(path), string(data)), nil
}
