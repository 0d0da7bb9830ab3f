package domain

import "context"

// RatingRepository is the abstraction for any kind of database intended to
// persist Ratings.
type RatingRepository interface {
	// AddRating stores the given rating. It returns ErrRatingExists if the
	// rater already rated the same escrow.
	AddRating(ctx context.Context, rating *Rating) error
	// GetRatingsForUser returns the paginated ratings received by the given
	// user.
	GetRatingsForUser(ctx context.Context, userId int64, page Page) ([]Rating, error)
}
