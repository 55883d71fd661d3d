// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soapbox-hq/soapbox/pkg/persistence"
	"github.com/soapbox-hq/soapbox/pkg/persistence/file"
	"github.com/soapbox-hq/soapbox/pkg/persistence/postgresql"
)

// NewPersistence creates a persistence backend from a URL. postgres:// URLs
// get the SQL backend with migrations applied on startup; anything else is
// treated as a file:// root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create postgresql persistence: %w", err))
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
