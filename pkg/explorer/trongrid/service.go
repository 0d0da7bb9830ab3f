package trongrid

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/explorer"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/tronutil"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/util"
)

const (
	apiKeyHeader = "TRON-PRO-API-KEY"

	recentTransfersLimit = 50
)

var (
	// ErrUnsupportedContract is returned when the referenced transaction
	// moves a token other than the configured one.
	ErrUnsupportedContract = errors.New("transaction does not move the supported token")
)

type trongrid struct {
	apiURL        string
	apiKey        string
	tokenContract string
}

// NewService returns a new trongrid service as an explorer.Service
// interface, scoped to transfers of the given token contract.
func NewService(apiURL, apiKey, tokenContract string) (explorer.Service, error) {
	service := &trongrid{apiURL, apiKey, tokenContract}

	if err := service.healthCheck(); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}

	return service, nil
}

func (t *trongrid) GetTransaction(txid string) (explorer.Transaction, error) {
	url := fmt.Sprintf("%s/wallet/gettransactionbyid", t.apiURL)
	body := fmt.Sprintf(`{"value": %q}`, txid)

	status, resp, err := util.NewHTTPRequest("POST", url, body, t.headers())
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetching transaction: %s", resp)
	}

	parsed, err := NewTxFromJSON(resp)
	if err != nil {
		return nil, err
	}
	if parsed.Contract() != t.tokenContract {
		return nil, ErrUnsupportedContract
	}
	return parsed, nil
}

func (t *trongrid) GetRecentTransfers(address string) ([]explorer.Transfer, error) {
	url := fmt.Sprintf(
		"%s/v1/accounts/%s/transactions/trc20?only_to=true&limit=%d&contract_address=%s",
		t.apiURL, address, recentTransfersLimit, t.tokenContract,
	)

	status, resp, err := util.NewHTTPRequest("GET", url, "", t.headers())
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetching transfers: %s", resp)
	}

	return parseTransfers(resp, t.tokenContract)
}

func (t *trongrid) GetBlockHeight() (int, error) {
	url := fmt.Sprintf("%s/wallet/getnowblock", t.apiURL)

	status, resp, err := util.NewHTTPRequest("POST", url, "{}", t.headers())
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("fetching chain tip: %s", resp)
	}

	block := &nowBlockResponse{}
	if err := json.Unmarshal([]byte(resp), block); err != nil {
		return 0, err
	}
	return block.BlockHeader.RawData.Number, nil
}

func (t *trongrid) healthCheck() error {
	_, err := t.GetBlockHeight()
	return err
}

func (t *trongrid) headers() map[string]string {
	if len(t.apiKey) <= 0 {
		return nil
	}
	return map[string]string{apiKeyHeader: t.apiKey}
}

func parseTransfers(resp, tokenContract string) ([]explorer.Transfer, error) {
	parsed := &trc20TransfersResponse{}
	if err := json.Unmarshal([]byte(resp), parsed); err != nil {
		return nil, err
	}

	transfers := make([]explorer.Transfer, 0, len(parsed.Data))
	for _, v := range parsed.Data {
		if v.Type != "Transfer" || v.TokenInfo.Address != tokenContract {
			continue
		}
		rawAmount, ok := new(big.Int).SetString(v.Value, 10)
		if !ok {
			continue
		}
		transfers = append(transfers, explorer.Transfer{
			TxId:      v.TransactionId,
			From:      v.From,
			To:        v.To,
			Amount:    fromTokenUnits(rawAmount, v.TokenInfo.Decimals),
			Timestamp: v.BlockTimestamp,
		})
	}
	return transfers, nil
}

func fromTokenUnits(v *big.Int, decimals int) decimal.Decimal {
	if decimals <= 0 {
		decimals = tronutil.TokenPrecision
	}
	return decimal.NewFromBigInt(v, -int32(decimals))
}
