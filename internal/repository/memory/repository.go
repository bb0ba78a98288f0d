package memoryrepository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"signalboard/internal/models"
	"signalboard/internal/repository"
)

// Store is an in-memory Repository used when db.dsn is empty and in tests.
// All methods are safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	signals    map[uint64]models.Signal
	marketData map[string]models.MarketData
	nextID     uint64
}

func New() *Store {
	return &Store{
		signals:    make(map[uint64]models.Signal),
		marketData: make(map[string]models.MarketData),
		nextID:     1,
	}
}

func (s *Store) ListSignals(ctx context.Context, params repository.ListSignalsParams) ([]models.Signal, error) {
	s.mu.RLock()
	items := make([]models.Signal, 0, len(s.signals))
	for _, item := range s.signals {
		if params.Status != nil && *params.Status != "" && item.Status != *params.Status {
			continue
		}
		if params.Pair != nil && strings.TrimSpace(*params.Pair) != "" && item.Pair != strings.TrimSpace(*params.Pair) {
			continue
		}
		items = append(items, item)
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []models.Signal{}, nil
	}
	items = items[offset:]
	limit := params.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	if limit < len(items) {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) GetSignal(ctx context.Context, id uint64) (*models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.signals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &item, nil
}

func (s *Store) CreateSignal(ctx context.Context, item *models.Signal) error {
	if item == nil {
		return nil
	}
	repository.ApplySignalDefaults(item, time.Now().UTC())
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.nextID
	s.nextID++
	s.signals[item.ID] = *item
	return nil
}

func (s *Store) CreateSignalIfNoActive(ctx context.Context, item *models.Signal) (bool, error) {
	if item == nil {
		return false, nil
	}
	repository.ApplySignalDefaults(item, time.Now().UTC())
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.signals {
		if existing.Pair == item.Pair && existing.Status == models.StatusActive {
			return false, nil
		}
	}
	item.ID = s.nextID
	s.nextID++
	s.signals[item.ID] = *item
	return true, nil
}

func (s *Store) UpdateSignal(ctx context.Context, id uint64, updates repository.SignalUpdate) (*models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.signals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	updates.Apply(&item)
	s.signals[id] = item
	return &item, nil
}

func (s *Store) DeleteSignal(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.signals[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.signals, id)
	return nil
}

func (s *Store) ListActiveSignals(ctx context.Context) ([]models.Signal, error) {
	status := models.StatusActive
	return s.ListSignals(ctx, repository.ListSignalsParams{Status: &status, Limit: 500})
}

func (s *Store) GetActiveSignalByPair(ctx context.Context, pair string) (*models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.Signal
	for _, item := range s.signals {
		if item.Pair != pair || item.Status != models.StatusActive {
			continue
		}
		if found == nil || item.CreatedAt.After(found.CreatedAt) {
			copied := item
			found = &copied
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (s *Store) UpsertMarketData(ctx context.Context, item *models.MarketData) error {
	if item == nil || strings.TrimSpace(item.Symbol) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.marketData[item.Symbol]
	if ok {
		item.ID = existing.ID
	} else {
		item.ID = s.nextID
		s.nextID++
	}
	item.UpdatedAt = time.Now().UTC()
	s.marketData[item.Symbol] = *item
	return nil
}

func (s *Store) GetMarketData(ctx context.Context, symbol string) (*models.MarketData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.marketData[symbol]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &item, nil
}

func (s *Store) ListMarketData(ctx context.Context) ([]models.MarketData, error) {
	s.mu.RLock()
	items := make([]models.MarketData, 0, len(s.marketData))
	for _, item := range s.marketData {
		items = append(items, item)
	}
	s.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool { return items[i].Symbol < items[j].Symbol })
	return items, nil
}
