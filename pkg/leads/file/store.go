// Package file provides a file-based lead store: one JSON document per lead.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dukex/leadflow/pkg/leads"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/google/uuid"
)

const leadsDir = "leads"

// Store implements leads.Store using the file system.
type Store struct {
	root string
	mu   sync.RWMutex
}

// NewStore creates a file store rooted at root. A file:// prefix is accepted.
func NewStore(root string) *Store {
	return &Store{root: strings.Replace(root, "file://", "", 1)}
}

func (s *Store) dir() string {
	return path.Join(s.root, leadsDir)
}

// Insert saves a new lead, assigning an ID when missing.
func (s *Store) Insert(_ context.Context, lead *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadAll()
	if err != nil {
		return leads.NewLeadError("Insert", lead.ID, err)
	}

	for _, existing := range all {
		if strings.EqualFold(existing.Email, lead.Email) {
			return leads.NewLeadError("Insert", lead.ID, leads.ErrDuplicateLead)
		}
	}

	if lead.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate lead ID: %w", err)
		}

		lead.ID = id.String()
	}

	lead.ApplyDefaults(time.Now())

	return s.write(lead)
}

// Find returns the leads matching filter, sorted and windowed by opts.
func (s *Store) Find(_ context.Context, filter leads.Filter, opts leads.FindOptions) ([]*models.Lead, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.loadAll()
	if err != nil {
		return nil, leads.NewLeadError("Find", "", err)
	}

	return leads.Select(all, filter, opts), nil
}

// Count returns the number of leads matching filter.
func (s *Store) Count(_ context.Context, filter leads.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.loadAll()
	if err != nil {
		return 0, leads.NewLeadError("Count", "", err)
	}

	return int64(len(leads.Matching(all, filter))), nil
}

// GetByID returns a lead by ID.
func (s *Store) GetByID(_ context.Context, id string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.read(id)
}

// Update overwrites an existing lead.
func (s *Store) Update(_ context.Context, lead *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.read(lead.ID); err != nil {
		return err
	}

	return s.write(lead)
}

// Delete removes a lead by ID.
func (s *Store) Delete(_ context.Context, id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return leads.NewLeadError("Delete", id, leads.ErrLeadNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return leads.NewLeadError("Delete", id, leads.ErrLeadNotFound)
		}

		return leads.NewLeadError("Delete", id, err)
	}

	return nil
}

// HealthCheck verifies the root directory exists.
func (s *Store) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file-based storage there is nothing to clean up.
func (s *Store) Close(_ context.Context) error {
	return nil
}

func (s *Store) filePath(id string) string {
	return filepath.Clean(path.Join(s.dir(), id+".json"))
}

func (s *Store) read(id string) (*models.Lead, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, leads.NewLeadError("GetByID", id, leads.ErrLeadNotFound)
	}

	body, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, leads.NewLeadError("GetByID", id, leads.ErrLeadNotFound)
		}

		return nil, leads.NewLeadError("GetByID", id, err)
	}

	var lead models.Lead

	if err := json.Unmarshal(body, &lead); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lead %s: %w", id, err)
	}

	return &lead, nil
}

func (s *Store) write(lead *models.Lead) error {
	if err := os.MkdirAll(s.dir(), 0750); err != nil {
		return fmt.Errorf("failed to create leads directory: %w", err)
	}

	data, err := json.MarshalIndent(lead, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lead %s: %w", lead.ID, err)
	}

	return os.WriteFile(s.filePath(lead.ID), data, 0600)
}

func (s *Store) loadAll() ([]*models.Lead, error) {
	jsonFiles, err := fs.Glob(os.DirFS(s.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list lead files: %w", err)
	}

	all := make([]*models.Lead, 0, len(jsonFiles))

	for _, name := range jsonFiles {
		lead, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}

		all = append(all, lead)
	}

	return all, nil
}
