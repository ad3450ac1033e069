package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
)

// SessionCache abstracts the key/value backend holding in-flight sessions.
type SessionCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// SessionStore keeps import and payslip sessions between requests.
type SessionStore struct {
	cache   SessionCache
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewSessionStore constructs a session store.
func NewSessionStore(cache SessionCache, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{cache: cache, metrics: metrics, ttl: ttl, logger: logger}
}

// TTL returns how long an idle session is kept.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Load reads the session stored under key. A missing or expired session
// yields ErrSessionExpired.
func (s *SessionStore) Load(ctx context.Context, key string, dest interface{}) error {
	start := time.Now()
	err := s.cache.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return appErrors.ErrSessionExpired
		}
		s.logger.Warn("session load failed", zap.String("key", key), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	s.metrics.RecordCacheOperation(true, duration)
	return nil
}

// Save stores the session and refreshes its TTL.
func (s *SessionStore) Save(ctx context.Context, key string, value interface{}) error {
	start := time.Now()
	err := s.cache.Set(ctx, key, value, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("session save failed", zap.String("key", key), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save session")
	}
	return nil
}

// Delete drops the session.
func (s *SessionStore) Delete(ctx context.Context, key string) error {
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("session delete failed", zap.String("key", key), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	return nil
}
