// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

// MaxHistory is the number of scans retained; older records are pruned on save
const MaxHistory = 100

// HistoryRepository persists completed scans
type HistoryRepository interface {
	// Save appends a scan record and prunes history beyond MaxHistory
	Save(ctx context.Context, record *entities.ScanRecord) error

	// List returns up to limit scans, newest first
	List(ctx context.Context, limit int) ([]entities.ScanSummary, error)

	// Get retrieves a scan by id, returning entities.ErrScanNotFound when absent
	Get(ctx context.Context, scanID string) (*entities.ScanRecord, error)
}
