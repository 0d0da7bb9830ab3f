package dbbadger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/ports"
)

// DbManager holds the badgerhold stores in a single data structure. The
// ledger store keeps items, escrows and consumed deposits together so that
// a deposit reservation and the escrow status write commit in one badger
// transaction; ratings live in a dedicated store.
type DbManager struct {
	ledgerStore *badgerhold.Store
	ratingStore *badgerhold.Store

	itemRepository    domain.ItemRepository
	escrowRepository  domain.EscrowRepository
	depositRepository domain.DepositRepository
	ratingRepository  domain.RatingRepository
}

// NewDbManager opens (or creates if not exists) the badger stores on disk.
// It expects a base data dir and an optional logger.
func NewDbManager(baseDbDir string, logger badger.Logger) (*DbManager, error) {
	ledgerDb, err := createDb(baseDbDir+"/ledger", logger)
	if err != nil {
		return nil, fmt.Errorf("opening ledger db: %w", err)
	}

	ratingDb, err := createDb(baseDbDir+"/rating", logger)
	if err != nil {
		return nil, fmt.Errorf("opening rating db: %w", err)
	}

	d := &DbManager{
		ledgerStore: ledgerDb,
		ratingStore: ratingDb,
	}
	d.itemRepository = newItemRepositoryImpl(d)
	d.escrowRepository = newEscrowRepositoryImpl(d)
	d.depositRepository = newDepositRepositoryImpl(d)
	d.ratingRepository = newRatingRepositoryImpl(d)
	return d, nil
}

func (d *DbManager) ItemRepository() domain.ItemRepository {
	return d.itemRepository
}

func (d *DbManager) EscrowRepository() domain.EscrowRepository {
	return d.escrowRepository
}

func (d *DbManager) DepositRepository() domain.DepositRepository {
	return d.depositRepository
}

func (d *DbManager) RatingRepository() domain.RatingRepository {
	return d.ratingRepository
}

// RunTransaction implements the ports.DbManager interface
func (d *DbManager) RunTransaction(
	ctx context.Context,
	readOnly bool,
	handler func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	return runTransaction(ctx, d.ledgerStore, readOnly, handler)
}

// RunRatingsTransaction implements the ports.DbManager interface
func (d *DbManager) RunRatingsTransaction(
	ctx context.Context,
	readOnly bool,
	handler func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	return runTransaction(ctx, d.ratingStore, readOnly, handler)
}

// Close implements the ports.DbManager interface
func (d *DbManager) Close() error {
	if err := d.ledgerStore.Close(); err != nil {
		return err
	}
	return d.ratingStore.Close()
}

func runTransaction(
	ctx context.Context,
	store *badgerhold.Store,
	readOnly bool,
	handler func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	tx := store.Badger().NewTransaction(!readOnly)
	defer tx.Discard()

	res, err := handler(context.WithValue(ctx, "tx", tx))
	if err != nil {
		return nil, err
	}

	if !readOnly {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// JSONEncode is a custom JSON based encoder for badger
func JSONEncode(value interface{}) ([]byte, error) {
	var buff bytes.Buffer

	en := json.NewEncoder(&buff)

	err := en.Encode(value)
	if err != nil {
		return nil, err
	}

	return buff.Bytes(), nil
}

// JSONDecode is a custom JSON based decoder for badger
func JSONDecode(data []byte, value interface{}) error {
	var buff bytes.Buffer
	de := json.NewDecoder(&buff)

	_, err := buff.Write(data)
	if err != nil {
		return err
	}

	return de.Decode(value)
}

func createDb(dbDir string, logger badger.Logger) (db *badgerhold.Store, err error) {
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	db, err = badgerhold.Open(badgerhold.Options{
		Encoder:          JSONEncode,
		Decoder:          JSONDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})

	return
}

var _ ports.DbManager = (*DbManager)(nil)
