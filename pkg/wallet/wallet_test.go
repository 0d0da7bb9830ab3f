package wallet

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	testPrivateKey = "b71c8f3a1f4b2d5e6a7b8c9d0e1f2a3b4c5d6e7f8091a2b3c4d5e6f708192a3b"
	testOperator   = "TT8AZ3dCpgWJQSw9EXhhyR3uKj81jXxbRB"
	testContract   = "TXLAQ63Xg1NAzckPwKHvzw7CSEmLMEqcdj"
)

func TestNewService(t *testing.T) {
	svc, err := NewService(Opts{
		ApiURL:          "https://api.trongrid.io",
		OperatorAddress: testOperator,
		PrivateKeyHex:   testPrivateKey,
		TokenContract:   testContract,
	})
	require.NoError(t, err)
	require.Equal(t, testOperator, svc.Address())

	impl := svc.(*service)
	require.Equal(t, int64(DefaultFeeLimit), impl.feeLimit)
	require.Equal(t, defaultPollInterval, impl.pollInterval)
}

func TestFailingNewService(t *testing.T) {
	tests := []struct {
		name string
		opts Opts
	}{
		{
			name: "with_missing_private_key",
			opts: Opts{OperatorAddress: testOperator, TokenContract: testContract},
		},
		{
			name: "with_invalid_private_key",
			opts: Opts{
				OperatorAddress: testOperator,
				PrivateKeyHex:   "zz",
				TokenContract:   testContract,
			},
		},
		{
			name: "with_invalid_operator_address",
			opts: Opts{
				OperatorAddress: "garbage",
				PrivateKeyHex:   testPrivateKey,
				TokenContract:   testContract,
			},
		},
		{
			name: "with_invalid_token_contract",
			opts: Opts{
				OperatorAddress: testOperator,
				PrivateKeyHex:   testPrivateKey,
				TokenContract:   "garbage",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(tt.opts)
			require.Error(t, err)
			require.Nil(t, svc)
		})
	}
}

func TestSignIsRecoverable(t *testing.T) {
	svc := newTestService(t)
	txid := "7c2d4206c03a883dd9066d620335dc1be272a8dc733cfa3f6d10308faa37facc"

	sigHex, err := svc.sign(txid)
	require.NoError(t, err)

	signature, err := hex.DecodeString(sigHex)
	require.NoError(t, err)
	require.Len(t, signature, 65)

	// rebuild the compact form with the recovery flag first and recover the
	// signing key from it.
	compact := make([]byte, 0, 65)
	compact = append(compact, signature[64]+27)
	compact = append(compact, signature[:64]...)

	digest, _ := hex.DecodeString(txid)
	recovered, _, err := ecdsa.RecoverCompact(compact, digest)
	require.NoError(t, err)

	keyBytes, _ := hex.DecodeString(testPrivateKey)
	expected, _ := btcec.PrivKeyFromBytes(keyBytes)
	require.True(t, recovered.IsEqual(expected.PubKey()))
}

func TestFailingTransfer(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	t.Run("with_zero_amount", func(t *testing.T) {
		result, err := svc.Transfer(ctx, testOperator, decimal.Zero, "memo")
		require.ErrorIs(t, err, ErrInvalidAmount)
		require.Nil(t, result)
	})

	t.Run("with_invalid_destination", func(t *testing.T) {
		result, err := svc.Transfer(
			ctx, "garbage", decimal.RequireFromString("1"), "memo",
		)
		require.Error(t, err)
		require.Nil(t, result)
	})
}

func TestDecodeApiMessage(t *testing.T) {
	require.Equal(
		t, "balance is not sufficient",
		decodeApiMessage(hex.EncodeToString([]byte("balance is not sufficient"))),
	)
	require.Equal(t, "plain text", decodeApiMessage("plain text"))
}

func newTestService(t *testing.T) *service {
	t.Helper()
	svc, err := NewService(Opts{
		ApiURL:          "http://localhost:0",
		OperatorAddress: testOperator,
		PrivateKeyHex:   testPrivateKey,
		TokenContract:   testContract,
		PollInterval:    time.Millisecond,
	})
	require.NoError(t, err)
	return svc.(*service)
}
