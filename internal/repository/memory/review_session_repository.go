package memory

import (
	"time"

	"transcript-review-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

type ReviewSessionRepository struct {
	cache *cache.Cache
}

// NewReviewSessionRepository keeps sessions in process memory. A session
// that sees no traffic for ttl is evicted together with its pending batch;
// committed annotations live in the database and are unaffected.
func NewReviewSessionRepository(ttl, sweepInterval time.Duration) *ReviewSessionRepository {
	c := cache.New(ttl, sweepInterval)
	return &ReviewSessionRepository{
		cache: c,
	}
}

func (r *ReviewSessionRepository) Save(session *store.ReviewSession) {
	r.cache.Set(session.ID, session, cache.DefaultExpiration)
}

func (r *ReviewSessionRepository) Get(sessionID string) (*store.ReviewSession, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*store.ReviewSession), true
	}
	return nil, false
}

func (r *ReviewSessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}
