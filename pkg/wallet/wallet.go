package wallet

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/shopspring/decimal"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/tronutil"
)

var (
	// ErrNullPrivateKey ...
	ErrNullPrivateKey = errors.New("operator private key must not be null")
	// ErrInvalidAmount ...
	ErrInvalidAmount = errors.New("transfer amount must be a positive amount")
	// ErrBroadcastRejected is returned when the network refuses the signed
	// transaction.
	ErrBroadcastRejected = errors.New("transfer broadcast rejected by the network")
	// ErrConfirmationTimeout is returned when the transfer was broadcast but
	// no definitive outcome was observed within the given deadline.
	ErrConfirmationTimeout = errors.New("transfer confirmation timed out")
	// ErrTransferReverted is returned when the network reports the transfer
	// execution as failed.
	ErrTransferReverted = errors.New("transfer execution reverted")
)

// TransferResult holds the chain txid of a confirmed settlement transfer.
type TransferResult struct {
	TxId string
}

// Service wraps the submission of token transfers from the operator wallet.
// Transfer blocks until the network reports a definitive outcome; callers
// must treat any error as "settlement not confirmed" and never retry
// automatically.
type Service interface {
	// Address returns the operator wallet address the transfers spend from.
	Address() string
	// Transfer submits a token transfer with the given memo attached and
	// awaits its confirmation.
	Transfer(
		ctx context.Context, destination string, amount decimal.Decimal, memo string,
	) (*TransferResult, error)
}

// Opts defines the parameters needed for creating a wallet service with the
// NewService factory.
type Opts struct {
	ApiURL          string
	ApiKey          string
	OperatorAddress string
	PrivateKeyHex   string
	TokenContract   string
	// FeeLimit is the maximum fee budget of one transfer, in sun.
	FeeLimit int64
	// PollInterval is the pause between two confirmation lookups.
	PollInterval time.Duration
}

type service struct {
	apiURL        string
	apiKey        string
	address       string
	privateKey    *btcec.PrivateKey
	tokenContract string
	feeLimit      int64
	pollInterval  time.Duration
}

// NewService validates the operator credentials and returns a wallet Service.
func NewService(opts Opts) (Service, error) {
	if len(opts.PrivateKeyHex) <= 0 {
		return nil, ErrNullPrivateKey
	}
	keyBytes, err := hex.DecodeString(opts.PrivateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decoding operator private key: %w", err)
	}
	privateKey, _ := btcec.PrivKeyFromBytes(keyBytes)

	if err := tronutil.ValidateAddress(opts.OperatorAddress); err != nil {
		return nil, fmt.Errorf("operator address: %w", err)
	}
	if err := tronutil.ValidateAddress(opts.TokenContract); err != nil {
		return nil, fmt.Errorf("token contract: %w", err)
	}

	feeLimit := opts.FeeLimit
	if feeLimit <= 0 {
		feeLimit = DefaultFeeLimit
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	return &service{
		apiURL:        opts.ApiURL,
		apiKey:        opts.ApiKey,
		address:       opts.OperatorAddress,
		privateKey:    privateKey,
		tokenContract: opts.TokenContract,
		feeLimit:      feeLimit,
		pollInterval:  pollInterval,
	}, nil
}

func (s *service) Address() string {
	return s.address
}

func (s *service) Transfer(
	ctx context.Context, destination string, amount decimal.Decimal, memo string,
) (*TransferResult, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if err := tronutil.ValidateAddress(destination); err != nil {
		return nil, err
	}

	unsigned, err := s.buildTransfer(destination, amount, memo)
	if err != nil {
		return nil, fmt.Errorf("building transfer: %w", err)
	}

	signature, err := s.sign(unsigned.TxID)
	if err != nil {
		return nil, fmt.Errorf("signing transfer: %w", err)
	}

	if err := s.broadcast(unsigned, signature); err != nil {
		return nil, err
	}

	if err := s.awaitConfirmation(ctx, unsigned.TxID); err != nil {
		return nil, err
	}

	return &TransferResult{TxId: unsigned.TxID}, nil
}
