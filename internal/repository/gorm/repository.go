package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"signalboard/internal/models"
	"signalboard/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ListSignals(ctx context.Context, params repository.ListSignalsParams) ([]models.Signal, error) {
	query := s.db.WithContext(ctx).Model(&models.Signal{})
	if params.Status != nil && *params.Status != "" {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Pair != nil && strings.TrimSpace(*params.Pair) != "" {
		query = query.Where("pair = ?", strings.TrimSpace(*params.Pair))
	}
	limit := params.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	var items []models.Signal
	err := query.
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetSignal(ctx context.Context, id uint64) (*models.Signal, error) {
	var item models.Signal
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreateSignal(ctx context.Context, item *models.Signal) error {
	if item == nil {
		return nil
	}
	repository.ApplySignalDefaults(item, time.Now().UTC())
	return s.db.WithContext(ctx).Create(item).Error
}

// CreateSignalIfNoActive serializes the check-then-insert per pair with a
// transaction-scoped advisory lock, so concurrent scan cycles cannot both
// insert an ACTIVE signal for the same pair.
func (s *Store) CreateSignalIfNoActive(ctx context.Context, item *models.Signal) (bool, error) {
	if item == nil {
		return false, nil
	}
	repository.ApplySignalDefaults(item, time.Now().UTC())
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", item.Pair).Error; err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.Signal{}).
			Where("pair = ? AND status = ?", item.Pair, models.StatusActive).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (s *Store) UpdateSignal(ctx context.Context, id uint64, updates repository.SignalUpdate) (*models.Signal, error) {
	var item models.Signal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&item, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrNotFound
			}
			return err
		}
		updates.Apply(&item)
		return tx.Save(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) DeleteSignal(ctx context.Context, id uint64) error {
	res := s.db.WithContext(ctx).Delete(&models.Signal{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) ListActiveSignals(ctx context.Context) ([]models.Signal, error) {
	var items []models.Signal
	err := s.db.WithContext(ctx).
		Where("status = ?", models.StatusActive).
		Order("created_at desc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetActiveSignalByPair(ctx context.Context, pair string) (*models.Signal, error) {
	var item models.Signal
	err := s.db.WithContext(ctx).
		Where("pair = ? AND status = ?", pair, models.StatusActive).
		Order("created_at desc").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertMarketData(ctx context.Context, item *models.MarketData) error {
	if item == nil || strings.TrimSpace(item.Symbol) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"price",
			"change",
			"change_percent",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetMarketData(ctx context.Context, symbol string) (*models.MarketData, error) {
	var item models.MarketData
	err := s.db.WithContext(ctx).First(&item, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListMarketData(ctx context.Context) ([]models.MarketData, error) {
	var items []models.MarketData
	err := s.db.WithContext(ctx).
		Order("symbol asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
