package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradeclient/src/database"
	"tradeclient/src/model"
)

// SessionRepository is the session-scoped key-value store. One row per key,
// rewritten on every mutation, read once at startup.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{db: database.SessionDB}
}

func (r *SessionRepository) WithDB(db *gorm.DB) *SessionRepository {
	r.db = db
	return r
}

// Put upserts a key.
func (r *SessionRepository) Put(ctx context.Context, key, value string) error {
	entry := model.SessionEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&entry).Error
}

// Get returns the stored value, or "" when the key was never written.
func (r *SessionRepository) Get(ctx context.Context, key string) (string, error) {
	var entry model.SessionEntry
	err := r.db.WithContext(ctx).
		Where("key = ?", key).
		First(&entry).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	return entry.Value, nil
}

func (r *SessionRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).
		Where("key = ?", key).
		Delete(&model.SessionEntry{}).Error
}

// PutJSON marshals and stores a value under the key.
func (r *SessionRepository) PutJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.Put(ctx, key, string(raw))
}

// GetJSON loads and unmarshals the value under the key. A missing key leaves
// out untouched and returns false.
func (r *SessionRepository) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	raw, err := r.Get(ctx, key)
	if err != nil || raw == "" {
		return false, err
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		logger.WithError(err).WithField("key", key).
			Warn("corrupt session entry, ignoring")
		return false, nil
	}

	return true, nil
}
