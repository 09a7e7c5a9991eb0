// Package sqlite persists scan history with GORM on SQLite.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ochairo/patchverify/internal/domain/entities"
	"github.com/ochairo/patchverify/internal/domain/interfaces/repositories"
)

// ScanModel is the GORM model for a completed scan.
// The full record is kept as JSON; summary columns serve history listings.
type ScanModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ScanID      string `gorm:"uniqueIndex;size:64"`
	App         string `gorm:"index"`
	OldVersion  string
	NewVersion  string
	Completed   time.Time
	Total       int
	Fixed       int
	NotFixed    int
	Unconfirmed int
	RiskScore   float64
	RiskLabel   string
	Record      string
}

// TableName keeps the table name stable across model renames
func (ScanModel) TableName() string {
	return "scans"
}

// HistoryRepository implements repositories.HistoryRepository on SQLite
type HistoryRepository struct {
	db      *gorm.DB
	maxRows int
}

// NewHistoryRepository opens (creating if needed) the database at path.
// Use ":memory:" for an ephemeral store.
func NewHistoryRepository(path string) (*HistoryRepository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access history database: %w", err)
	}
	// One connection: SQLite serialises writers, and ":memory:" is per connection
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&ScanModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}

	return &HistoryRepository{db: db, maxRows: repositories.MaxHistory}, nil
}

// Close releases the underlying connection
func (r *HistoryRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save appends record and prunes everything older than the newest MaxHistory scans
func (r *HistoryRepository) Save(ctx context.Context, record *entities.ScanRecord) error {
	if record == nil || record.ScanID == "" {
		return fmt.Errorf("scan record must have an id")
	}
	model, err := toModel(record)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("failed to save scan %s: %w", record.ScanID, err)
		}
		keep := tx.Model(&ScanModel{}).Select("id").Order("id DESC").Limit(r.maxRows)
		if err := tx.Where("id NOT IN (?)", keep).Delete(&ScanModel{}).Error; err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
		return nil
	})
}

// List returns up to limit scans, newest first. limit <= 0 returns all retained scans.
func (r *HistoryRepository) List(ctx context.Context, limit int) ([]entities.ScanSummary, error) {
	q := r.db.WithContext(ctx).Omit("record").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []ScanModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	out := make([]entities.ScanSummary, 0, len(models))
	for _, m := range models {
		out = append(out, toSummary(m))
	}
	return out, nil
}

// Get retrieves a scan by id
func (r *HistoryRepository) Get(ctx context.Context, scanID string) (*entities.ScanRecord, error) {
	var model ScanModel
	err := r.db.WithContext(ctx).Where("scan_id = ?", scanID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", entities.ErrScanNotFound, scanID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scan %s: %w", scanID, err)
	}

	var record entities.ScanRecord
	if err := json.Unmarshal([]byte(model.Record), &record); err != nil {
		return nil, fmt.Errorf("corrupt history record %s: %w", scanID, err)
	}
	return &record, nil
}

func toModel(r *entities.ScanRecord) (*ScanModel, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scan %s: %w", r.ScanID, err)
	}
	return &ScanModel{
		ScanID:      r.ScanID,
		App:         r.App,
		OldVersion:  r.OldVersion,
		NewVersion:  r.NewVersion,
		Completed:   r.Completed,
		Total:       r.Total,
		Fixed:       r.Fixed,
		NotFixed:    r.NotFixed,
		Unconfirmed: r.Unconfirmed,
		RiskScore:   r.RiskScore,
		RiskLabel:   string(r.RiskLabel),
		Record:      string(data),
	}, nil
}

func toSummary(m ScanModel) entities.ScanSummary {
	return entities.ScanSummary{
		ScanID:      m.ScanID,
		App:         m.App,
		OldVersion:  m.OldVersion,
		NewVersion:  m.NewVersion,
		Completed:   m.Completed,
		Total:       m.Total,
		Fixed:       m.Fixed,
		NotFixed:    m.NotFixed,
		Unconfirmed: m.Unconfirmed,
		RiskScore:   m.RiskScore,
		RiskLabel:   entities.RiskLabel(m.RiskLabel),
	}
}
