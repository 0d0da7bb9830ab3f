package domain

import (
	"time"

	"github.com/google/uuid"
)

// Rating is an append-only record of the score one party gave to the other
// once their escrow completed.
type Rating struct {
	Id              string
	EscrowReference string
	RaterId         int64
	RateeId         int64
	Score           int
	Review          string
	CreatedAt       int64
}

// NewRating returns a rating with a new id after validating the score.
func NewRating(
	escrowReference string, raterId, rateeId int64, score int, review string,
) (*Rating, error) {
	if score < 1 || score > 5 {
		return nil, ErrRatingInvalidScore
	}

	return &Rating{
		Id:              uuid.New().String(),
		EscrowReference: escrowReference,
		RaterId:         raterId,
		RateeId:         rateeId,
		Score:           score,
		Review:          review,
		CreatedAt:       time.Now().Unix(),
	}, nil
}
