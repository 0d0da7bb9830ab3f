package trongrid

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/explorer"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/tronutil"
)

const (
	triggerSmartContract = "TriggerSmartContract"
	// transferSelector is the 4-byte selector of transfer(address,uint256).
	transferSelector = "a9059cbb"
	// transferCallDataLength is selector + 2 abi words, in hex chars.
	transferCallDataLength = 8 + 64 + 64

	contractRetSuccess = "SUCCESS"
)

var (
	// ErrNotTokenTransfer is returned when the referenced transaction is not
	// a TRC-20 transfer call.
	ErrNotTokenTransfer = errors.New("transaction is not a token transfer")
)

type tx struct {
	hash      string
	contract  string
	sender    string
	recipient string
	amount    decimal.Decimal
	memo      string
	confirmed bool
	timestamp int64
}

// NewTxFromJSON parses the provider's gettransactionbyid payload into an
// explorer.Transaction, decoding the transfer call data (recipient, amount
// in minor units) and the hex-encoded memo.
func NewTxFromJSON(txJSON string) (explorer.Transaction, error) {
	res := &txResponse{}
	if err := json.Unmarshal([]byte(txJSON), res); err != nil {
		return nil, err
	}
	if len(res.TxID) <= 0 || len(res.RawData.Contract) <= 0 {
		return nil, ErrNotTokenTransfer
	}

	contract := res.RawData.Contract[0]
	if contract.Type != triggerSmartContract {
		return nil, ErrNotTokenTransfer
	}

	recipient, amount, err := parseTransferCallData(contract.Parameter.Value.Data)
	if err != nil {
		return nil, err
	}

	contractAddr, err := tronutil.AddressFromHex(contract.Parameter.Value.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("parsing contract address: %w", err)
	}
	sender, err := tronutil.AddressFromHex(contract.Parameter.Value.OwnerAddress)
	if err != nil {
		return nil, fmt.Errorf("parsing sender address: %w", err)
	}

	return &tx{
		hash:      res.TxID,
		contract:  contractAddr,
		sender:    sender,
		recipient: recipient,
		amount:    amount,
		memo:      decodeMemo(res.RawData.Data),
		confirmed: executionSucceeded(res.Ret),
		timestamp: res.RawData.Timestamp,
	}, nil
}

func (t *tx) Hash() string {
	return t.hash
}

func (t *tx) Contract() string {
	return t.contract
}

func (t *tx) Sender() string {
	return t.sender
}

func (t *tx) Recipient() string {
	return t.recipient
}

func (t *tx) Amount() decimal.Decimal {
	return t.amount
}

func (t *tx) Memo() string {
	return t.memo
}

func (t *tx) Confirmed() bool {
	return t.confirmed
}

func (t *tx) Timestamp() int64 {
	return t.timestamp
}

func parseTransferCallData(callData string) (string, decimal.Decimal, error) {
	data := strings.ToLower(strings.TrimPrefix(callData, "0x"))
	if len(data) != transferCallDataLength || !strings.HasPrefix(data, transferSelector) {
		return "", decimal.Zero, ErrNotTokenTransfer
	}

	// first word: left-padded 20-byte recipient address.
	recipientWord := data[8 : 8+64]
	recipient, err := tronutil.AddressFromHex("41" + recipientWord[24:])
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("parsing recipient address: %w", err)
	}

	// second word: amount in minor units.
	amountWord := data[8+64:]
	rawAmount, err := hex.DecodeString(amountWord)
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("parsing transfer amount: %w", err)
	}

	amount := tronutil.FromMinorUnits(new(big.Int).SetBytes(rawAmount))
	return recipient, amount, nil
}

func decodeMemo(rawMemo string) string {
	if len(rawMemo) <= 0 {
		return ""
	}
	buf, err := hex.DecodeString(rawMemo)
	if err != nil {
		// some wallets attach the memo as plain text.
		return rawMemo
	}
	return string(buf)
}

func executionSucceeded(ret []txRet) bool {
	if len(ret) <= 0 {
		return false
	}
	return ret[0].ContractRet == contractRetSuccess
}
