package cache

import (
	"context"
	"time"

	"brokerage-gateway/domain/model"
	"brokerage-gateway/infrastructure/logger"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryRequestTokenStore keeps pending request tokens in process, for single
// instance deployments and tests.
type MemoryRequestTokenStore struct {
	cache *ttlcache.Cache[string, model.RequestTokenRecord]
}

func NewMemoryRequestTokenStore() *MemoryRequestTokenStore {
	c := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, model.RequestTokenRecord](),
	)
	c.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, model.RequestTokenRecord]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		rec := item.Value()
		status, _ := model.Transition(model.TokenStatusRequestTokenIssued, model.EventRequestTokenExpired)
		logger.GetLogger().WithFields(map[string]interface{}{
			"account_id":    rec.AccountID,
			"request_token": model.TokenFingerprint(rec.Token),
			"status":        status,
		}).Info("Pending request token expired")
	})
	return &MemoryRequestTokenStore{cache: c}
}

func (s *MemoryRequestTokenStore) Put(_ context.Context, rec *model.RequestTokenRecord, ttl time.Duration) error {
	s.cache.Set(HashToken(rec.Token), *rec, ttl)
	return nil
}

func (s *MemoryRequestTokenStore) Get(_ context.Context, requestToken string) (*model.RequestTokenRecord, error) {
	item := s.cache.Get(HashToken(requestToken))
	if item == nil || item.IsExpired() {
		return nil, nil
	}
	rec := item.Value()
	return &rec, nil
}

func (s *MemoryRequestTokenStore) Delete(_ context.Context, requestToken string) error {
	s.cache.Delete(HashToken(requestToken))
	return nil
}

// Len is the number of pending entries, expired ones included until swept.
func (s *MemoryRequestTokenStore) Len() int {
	return s.cache.Len()
}

// Run sweeps expired request tokens until ctx is done.
func (s *MemoryRequestTokenStore) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.cache.Stop()
	}()
	logger.GetLogger().Info("Request token sweeper started")
	s.cache.Start()
	logger.GetLogger().Info("Request token sweeper stopped")
	return nil
}
