package dbbadger

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
)

type ratingRepositoryImpl struct {
	db *DbManager
}

func newRatingRepositoryImpl(db *DbManager) domain.RatingRepository {
	return ratingRepositoryImpl{db: db}
}

func (r ratingRepositoryImpl) AddRating(
	ctx context.Context, rating *domain.Rating,
) error {
	// the duplicate check and the insert share one badger transaction so
	// two concurrent ratings of the same escrow cannot both pass.
	return r.db.ratingStore.Badger().Update(func(tx *badger.Txn) error {
		query := badgerhold.
			Where("EscrowReference").Eq(rating.EscrowReference).
			And("RaterId").Eq(rating.RaterId)

		var existing []domain.Rating
		if err := r.db.ratingStore.TxFind(tx, &existing, query); err != nil {
			return err
		}
		if len(existing) > 0 {
			return domain.ErrRatingExists
		}
		return r.db.ratingStore.TxInsert(tx, rating.Id, rating)
	})
}

func (r ratingRepositoryImpl) GetRatingsForUser(
	ctx context.Context, userId int64, page domain.Page,
) ([]domain.Rating, error) {
	query := badgerhold.
		Where("RateeId").Eq(userId).
		SortBy("CreatedAt").
		Skip((page.Number - 1) * page.Size).
		Limit(page.Size)

	var ratings []domain.Rating
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.db.ratingStore.TxFind(tx, &ratings, query)
	} else {
		err = r.db.ratingStore.Find(&ratings, query)
	}

	return ratings, err
}
