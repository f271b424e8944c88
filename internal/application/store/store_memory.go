package store

import (
	"context"
	"slices"
	"sync"

	"onboard/internal/application/models"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/requestcontext"
)

// InMemoryStore keeps applications in process memory. Used when no database
// is configured and in tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	apps   map[int64]models.Application
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{apps: make(map[int64]models.Application)}
}

func (s *InMemoryStore) Insert(ctx context.Context, sub models.Submission) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sub.SubjectAttributes = slices.Clone(sub.SubjectAttributes)
	sub.IssuerAttributes = slices.Clone(sub.IssuerAttributes)
	s.apps[s.nextID] = models.Application{
		ID:         s.nextID,
		Submission: sub,
		CreatedAt:  requestcontext.Now(ctx),
	}
	return s.nextID, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id int64) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &app, nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]*models.Application, error) {
	if limit <= 0 {
		return []*models.Application{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	apps := make([]*models.Application, 0, len(s.apps))
	for _, app := range s.apps {
		a := app
		apps = append(apps, &a)
	}
	slices.SortFunc(apps, func(a, b *models.Application) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	if len(apps) > limit {
		apps = apps[:limit]
	}
	return apps, nil
}

// Len reports how many applications are stored.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.apps)
}
