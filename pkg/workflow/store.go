package workflow

import (
	"context"
	"slices"
	"sync"
	"time"
)

// DefinitionStore keeps the current workflow definition.
type DefinitionStore interface {
	// Current returns the latest saved definition, or DefaultDefinition when none was saved.
	Current(ctx context.Context) (Definition, error)
	// Save replaces the current definition, assigning it the next version.
	Save(ctx context.Context, def Definition) (Definition, error)
}

// MemoryDefinitionStore keeps the definition in process memory.
type MemoryDefinitionStore struct {
	mu      sync.RWMutex
	current *Definition
	version int64
}

func NewMemoryDefinitionStore() *MemoryDefinitionStore {
	return &MemoryDefinitionStore{}
}

func (s *MemoryDefinitionStore) Current(_ context.Context) (Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return DefaultDefinition(), nil
	}

	return s.current.Clone(), nil
}

func (s *MemoryDefinitionStore) Save(_ context.Context, def Definition) (Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version++

	saved := def.Clone()
	saved.Version = s.version
	saved.UpdatedAt = time.Now().UTC()

	s.current = &saved

	return saved.Clone(), nil
}

// Clone returns a copy of d that shares no slices with it.
func (d Definition) Clone() Definition {
	d.Steps = slices.Clone(d.Steps)
	d.Edges = slices.Clone(d.Edges)

	return d
}
