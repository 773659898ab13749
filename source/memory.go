package source

import (
	"context"
)

// Serves input tables from memory.
type Memory struct {
	Files map[string][]byte
}

func NewMemory(files map[string][]byte) *Memory {
	if files == nil {
		files = map[string][]byte{}
	}
	return &Memory{Files: files}
}

func (m *Memory) Get(ctx context.Context, name string) ([]byte, error) {
	buf, found := m.Files[name]
	if !found {
		return nil, &NotFoundError{Name: name}
	}
	return buf, nil
}
