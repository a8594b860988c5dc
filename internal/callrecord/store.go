package callrecord

import (
	"context"
	"errors"
	"time"

	"github.com/wazo-platform/wazo-stt-gateway/internal/shared"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&CallRecord{})
}

// Open records the start of a transcription session and returns the row.
func (s *Store) Open(ctx context.Context, callID, tenantUUID, backend string) (*CallRecord, error) {
	rec := &CallRecord{
		ID:         shared.NewID("rec_"),
		CallID:     callID,
		TenantUUID: tenantUUID,
		Backend:    backend,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// Close stamps the end of the most recent open record for the call.
func (s *Store) Close(ctx context.Context, callID string) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).
		Model(&CallRecord{}).
		Where("call_id = ? AND ended_at IS NULL", callID).
		Update("ended_at", &now).Error
}

func (s *Store) GetByID(ctx context.Context, id string) (*CallRecord, error) {
	var rec CallRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &rec, err
}

// ListOpen returns the records without an end timestamp, oldest first.
func (s *Store) ListOpen(ctx context.Context) ([]CallRecord, error) {
	var recs []CallRecord
	err := s.db.WithContext(ctx).
		Where("ended_at IS NULL").
		Order("started_at asc").
		Find(&recs).Error
	return recs, err
}

// ListByTenant returns the most recent records for one tenant.
func (s *Store) ListByTenant(ctx context.Context, tenantUUID string, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []CallRecord
	err := s.db.WithContext(ctx).
		Where("tenant_uuid = ?", tenantUUID).
		Order("started_at desc").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
