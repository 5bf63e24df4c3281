// Package source reads the schema and rows of a migration source: a view or
// table in the source database, a delimited text file or an XLSX sheet.
//
// Every reader is a single forward pass. Next returns io.EOF once the rows are
// exhausted; a *types.RowError reports one unreadable row and reading may
// continue after it.
package source

import (
	"context"
	"fmt"

	"github.com/dbsmedya/gomigrate/internal/config"
	"github.com/dbsmedya/gomigrate/internal/database"
	"github.com/dbsmedya/gomigrate/internal/types"
)

// Reader streams the rows of one source.
type Reader interface {
	Schema() types.Schema
	Next() (types.Record, error)
	Close() error
}

// Open dispatches on the configured source kind. h may be nil for file sources.
func Open(ctx context.Context, h *database.Handle, cfg config.SourceConfig) (Reader, error) {
	if cfg.IsDatabase() {
		return OpenTable(ctx, h, cfg.Name)
	}

	switch cfg.FileKind() {
	case config.SourceCSV:
		return OpenCSV(cfg.Path, CSVOptions{Delimiter: firstRune(cfg.Delimiter)})
	case config.SourceXLSX:
		return OpenXLSX(cfg.Path, cfg.Sheet)
	}
	return nil, fmt.Errorf("%w: unsupported file format for %s", types.ErrSourceUnavailable, cfg.Path)
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}
