package application

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/ports"
)

// RatingService records mutual feedback on completed escrows and exposes
// the aggregated reputation of a user.
type RatingService interface {
	// Rate records the score the actor gives the counterpart of the given
	// completed escrow. Each party can rate an escrow once.
	Rate(
		ctx context.Context,
		reference string,
		actor int64,
		score int,
		review string,
	) (*domain.Rating, error)
	// RatingsFor returns the paginated ratings received by the given user.
	RatingsFor(ctx context.Context, userId int64, page domain.Page) ([]domain.Rating, error)
	// AverageFor returns the average score of the given user along with the
	// number of ratings it is computed over.
	AverageFor(ctx context.Context, userId int64) (decimal.Decimal, int, error)
}

type ratingService struct {
	dbManager ports.DbManager
}

// NewRatingService returns a RatingService backed by the given db manager.
func NewRatingService(dbManager ports.DbManager) RatingService {
	return &ratingService{dbManager: dbManager}
}

func (s *ratingService) Rate(
	ctx context.Context,
	reference string,
	actor int64,
	score int,
	review string,
) (*domain.Rating, error) {
	escrow, err := s.dbManager.EscrowRepository().GetEscrowByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !escrow.IsCompleted() {
		return nil, domain.ErrEscrowInvalidStatus
	}
	ratee, ok := escrow.Counterpart(actor)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	rating, err := domain.NewRating(reference, actor, ratee, score, review)
	if err != nil {
		return nil, err
	}
	if err := s.dbManager.RatingRepository().AddRating(ctx, rating); err != nil {
		return nil, err
	}
	return rating, nil
}

func (s *ratingService) RatingsFor(
	ctx context.Context, userId int64, page domain.Page,
) ([]domain.Rating, error) {
	return s.dbManager.RatingRepository().GetRatingsForUser(ctx, userId, page)
}

func (s *ratingService) AverageFor(
	ctx context.Context, userId int64,
) (decimal.Decimal, int, error) {
	// a single page large enough for any realistic user; ratings are
	// bounded by completed escrows.
	ratings, err := s.dbManager.RatingRepository().GetRatingsForUser(
		ctx, userId, domain.Page{Number: 1, Size: 10000},
	)
	if err != nil {
		return decimal.Zero, 0, err
	}
	if len(ratings) <= 0 {
		return decimal.Zero, 0, nil
	}

	sum := decimal.Zero
	for _, r := range ratings {
		sum = sum.Add(decimal.NewFromInt(int64(r.Score)))
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(ratings)))).Round(2)
	return avg, len(ratings), nil
}
