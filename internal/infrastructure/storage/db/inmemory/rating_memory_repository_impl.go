package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
)

type ratingInmemoryStore struct {
	ratings map[string]*domain.Rating
	locker  *sync.Mutex
}

func newRatingInmemoryStore() *ratingInmemoryStore {
	return &ratingInmemoryStore{
		ratings: make(map[string]*domain.Rating),
		locker:  &sync.Mutex{},
	}
}

type ratingRepositoryImpl struct {
	store *ratingInmemoryStore
}

// NewRatingRepositoryImpl returns a new inmemory RatingRepository
// implementation.
func NewRatingRepositoryImpl(store *ratingInmemoryStore) domain.RatingRepository {
	return &ratingRepositoryImpl{store}
}

func (r ratingRepositoryImpl) AddRating(
	_ context.Context, rating *domain.Rating,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	for _, existing := range r.store.ratings {
		if existing.EscrowReference == rating.EscrowReference &&
			existing.RaterId == rating.RaterId {
			return domain.ErrRatingExists
		}
	}
	clone := *rating
	r.store.ratings[rating.Id] = &clone
	return nil
}

func (r ratingRepositoryImpl) GetRatingsForUser(
	_ context.Context, userId int64, page domain.Page,
) ([]domain.Rating, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	ratings := make([]domain.Rating, 0)
	for _, rating := range r.store.ratings {
		if rating.RateeId == userId {
			ratings = append(ratings, *rating)
		}
	}
	sort.Slice(ratings, func(a, b int) bool {
		return ratings[a].CreatedAt < ratings[b].CreatedAt
	})

	from := (page.Number - 1) * page.Size
	if from >= len(ratings) {
		return []domain.Rating{}, nil
	}
	to := from + page.Size
	if to > len(ratings) {
		to = len(ratings)
	}
	return ratings[from:to], nil
}
