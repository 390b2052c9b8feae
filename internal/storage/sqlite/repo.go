// Package sqlite is the single-file record store used for local runs and
// tests. It mirrors the MySQL table through gorm.
package sqlite

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"poi_ingest/internal/domain"
)

const insertChunk = 500

type poiRow struct {
	ExternalID int64   `gorm:"column:external_id;primaryKey;autoIncrement"`
	InternalID string  `gorm:"column:internal_id;size:100;not null;index"`
	Name       string  `gorm:"column:name;size:255;not null"`
	Category   string  `gorm:"column:category;size:100;not null;default:''"`
	Latitude   float64 `gorm:"column:latitude;not null"`
	Longitude  float64 `gorm:"column:longitude;not null"`
	Rating     float64 `gorm:"column:rating;not null;default:0"`
}

func (poiRow) TableName() string { return "points_of_interest" }

type Repo struct{ db *gorm.DB }

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string) (*Repo, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_journal=WAL&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// one writer at a time; concurrent jobs queue on the pool
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&poiRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *Repo) InsertBatch(ctx context.Context, pois []domain.POI) ([]int64, error) {
	if len(pois) == 0 {
		return nil, nil
	}
	rows := make([]poiRow, len(pois))
	for i, p := range pois {
		rows[i] = poiRow{
			InternalID: p.InternalID,
			Name:       p.Name,
			Category:   p.Category,
			Latitude:   p.Latitude,
			Longitude:  p.Longitude,
			Rating:     p.Rating,
		}
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&rows, insertChunk).Error
	})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ExternalID
	}
	return ids, nil
}

func (r *Repo) FindByInternalID(ctx context.Context, internalID string) ([]domain.POI, error) {
	var rows []poiRow
	err := r.db.WithContext(ctx).
		Where("internal_id = ?", internalID).
		Order("external_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.POI, len(rows))
	for i, row := range rows {
		out[i] = domain.POI(row)
	}
	return out, nil
}

func (r *Repo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&poiRow{}).Count(&n).Error
	return n, err
}

var _ domain.POIRepository = (*Repo)(nil)
