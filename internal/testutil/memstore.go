package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"trendboard/internal/db"
	"trendboard/internal/models"
)

// MemStore is an in-memory store with the same observable semantics as db.DB.
// Calls counts method invocations; Errors injects a failure per method name
// and UpsertErrors per indicator id.
type MemStore struct {
	mu sync.Mutex

	indicators map[string]models.Indicator
	rows       map[string]map[string]*models.Observation
	config     map[string]string
	logs       []*models.SyncLog

	Calls        map[string]int
	Errors       map[string]error
	UpsertErrors map[string]error
}

// NewMemStore creates a store holding the given indicators.
func NewMemStore(indicators ...models.Indicator) *MemStore {
	s := &MemStore{
		indicators:   make(map[string]models.Indicator),
		rows:         make(map[string]map[string]*models.Observation),
		config:       make(map[string]string),
		Calls:        make(map[string]int),
		Errors:       make(map[string]error),
		UpsertErrors: make(map[string]error),
	}
	for _, ind := range indicators {
		s.indicators[ind.ID] = ind
	}
	return s
}

func (s *MemStore) call(name string) error {
	s.Calls[name]++
	return s.Errors[name]
}

// CallCount returns how often a method was called.
func (s *MemStore) CallCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls[name]
}

// ReadCalls returns the total number of read calls.
func (s *MemStore) ReadCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range []string{"ListIndicators", "GetIndicator", "LatestObservation", "QueryObservations", "GetConfigValue", "GetLatestSyncLog"} {
		n += s.Calls[m]
	}
	return n
}

// SetError injects err for method name.
func (s *MemStore) SetError(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors[name] = err
}

// Put stores an observation directly, bypassing upsert semantics.
func (s *MemStore) Put(indicatorID string, obs models.Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obs.IndicatorID = indicatorID
	if s.rows[indicatorID] == nil {
		s.rows[indicatorID] = make(map[string]*models.Observation)
	}
	s.rows[indicatorID][obs.Period] = &obs
}

// Row returns a stored observation.
func (s *MemStore) Row(indicatorID, period string) (models.Observation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.rows[indicatorID][period]
	if !ok {
		return models.Observation{}, false
	}
	return *o, true
}

// RowCount returns the number of stored observations of an indicator.
func (s *MemStore) RowCount(indicatorID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[indicatorID])
}

// Logs returns the recorded sync logs, oldest first.
func (s *MemStore) Logs() []models.SyncLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SyncLog, len(s.logs))
	for i, l := range s.logs {
		out[i] = *l
	}
	return out
}

// ListIndicators implements the store read interface.
func (s *MemStore) ListIndicators(ctx context.Context) ([]models.Indicator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("ListIndicators"); err != nil {
		return nil, err
	}
	out := make([]models.Indicator, 0, len(s.indicators))
	for _, ind := range s.indicators {
		out = append(out, ind)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetIndicator implements the store read interface.
func (s *MemStore) GetIndicator(ctx context.Context, id string) (*models.Indicator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("GetIndicator"); err != nil {
		return nil, err
	}
	ind, ok := s.indicators[id]
	if !ok {
		return nil, db.ErrIndicatorNotFound
	}
	return &ind, nil
}

// LatestObservation implements the store read interface.
func (s *MemStore) LatestObservation(ctx context.Context, indicatorID string) (*models.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("LatestObservation"); err != nil {
		return nil, err
	}
	rows := s.sortedDesc(indicatorID)
	if len(rows) == 0 {
		return nil, db.ErrObservationNotFound
	}
	o := rows[0]
	return &o, nil
}

// QueryObservations implements the store read interface.
func (s *MemStore) QueryObservations(ctx context.Context, indicatorID string, limit int) ([]models.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("QueryObservations"); err != nil {
		return nil, err
	}
	rows := s.sortedDesc(indicatorID)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *MemStore) sortedDesc(indicatorID string) []models.Observation {
	out := make([]models.Observation, 0, len(s.rows[indicatorID]))
	for _, o := range s.rows[indicatorID] {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period > out[j].Period })
	return out
}

// UpsertObservation implements the store write interface.
func (s *MemStore) UpsertObservation(ctx context.Context, indicatorID string, p models.Point, provenance string) (models.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("UpsertObservation"); err != nil {
		return models.UpsertResult{}, err
	}
	if err := s.UpsertErrors[indicatorID]; err != nil {
		return models.UpsertResult{}, err
	}
	if err := db.ValidateWrite(p, provenance); err != nil {
		return models.UpsertResult{}, err
	}
	if s.rows[indicatorID] == nil {
		s.rows[indicatorID] = make(map[string]*models.Observation)
	}

	existing, ok := s.rows[indicatorID][p.Period]
	if !ok {
		s.rows[indicatorID][p.Period] = &models.Observation{
			IndicatorID: indicatorID,
			Period:      p.Period,
			Value:       p.Value,
			YoYChange:   p.YoY,
			MoMChange:   p.MoM,
			Provenance:  provenance,
			FetchedAt:   time.Now(),
		}
		return models.UpsertResult{Added: true}, nil
	}
	if existing.Value == p.Value {
		return models.UpsertResult{}, nil
	}
	existing.Value = p.Value
	existing.YoYChange = p.YoY
	existing.MoMChange = p.MoM
	existing.Revision++
	existing.Provenance = provenance
	existing.FetchedAt = time.Now()
	return models.UpsertResult{Updated: true}, nil
}

// GetConfigValue implements the config interface.
func (s *MemStore) GetConfigValue(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("GetConfigValue"); err != nil {
		return "", err
	}
	v, ok := s.config[key]
	if !ok {
		return "", db.ErrConfigNotFound
	}
	return v, nil
}

// SetConfigValue implements the config interface.
func (s *MemStore) SetConfigValue(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("SetConfigValue"); err != nil {
		return err
	}
	s.config[key] = value
	return nil
}

// CreateSyncLog implements the sync log interface.
func (s *MemStore) CreateSyncLog(ctx context.Context, log *models.SyncLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("CreateSyncLog"); err != nil {
		return err
	}
	log.ID = uuid.New()
	log.Status = models.SyncRunning
	log.StartedAt = time.Now()
	stored := *log
	s.logs = append(s.logs, &stored)
	return nil
}

// FinishSyncLog implements the sync log interface.
func (s *MemStore) FinishSyncLog(ctx context.Context, log *models.SyncLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("FinishSyncLog"); err != nil {
		return err
	}
	for i, l := range s.logs {
		if l.ID == log.ID && l.Status == models.SyncRunning {
			stored := *log
			s.logs[i] = &stored
			return nil
		}
	}
	return db.ErrSyncLogNotFound
}

// GetLatestSyncLog implements the sync log interface.
func (s *MemStore) GetLatestSyncLog(ctx context.Context) (*models.SyncLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("GetLatestSyncLog"); err != nil {
		return nil, err
	}
	if len(s.logs) == 0 {
		return nil, db.ErrSyncLogNotFound
	}
	l := *s.logs[len(s.logs)-1]
	return &l, nil
}

// Ping implements the health check.
func (s *MemStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.call("Ping")
}
