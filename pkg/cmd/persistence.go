package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dukex/leadflow/pkg/leads"
	"github.com/dukex/leadflow/pkg/leads/file"
	"github.com/dukex/leadflow/pkg/leads/postgresql"
	"github.com/dukex/leadflow/pkg/workflow"
	"github.com/dukex/leadflow/pkg/workflow/redisstore"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql"}

// NewLeadStore opens the lead store named by databaseURL: postgres:// URLs use PostgreSQL,
// anything else is a file store directory.
func NewLeadStore(ctx context.Context, logger *slog.Logger, databaseURL string) (leads.Store, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewStore(ctx, logger.With("module", "postgresql_leads"), databaseURL)
	default:
		return file.NewStore(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}

// NewDefinitionStore keeps workflow definitions in Redis when redisURL is set and in memory
// otherwise. The returned close function releases the connection.
func NewDefinitionStore(ctx context.Context, logger *slog.Logger, redisURL string) (workflow.DefinitionStore, func() error, error) {
	if redisURL == "" {
		return workflow.NewMemoryDefinitionStore(), func() error { return nil }, nil
	}

	store, err := redisstore.NewStore(ctx, logger, redisURL)
	if err != nil {
		return nil, nil, err
	}

	return store, store.Close, nil
}
