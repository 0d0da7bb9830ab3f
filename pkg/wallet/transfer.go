package wallet

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/shopspring/decimal"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/tronutil"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/util"
)

const (
	// DefaultFeeLimit is the default fee budget of one transfer, in sun.
	DefaultFeeLimit = 1000000

	defaultPollInterval = 3 * time.Second

	transferFunctionSelector = "transfer(address,uint256)"

	apiKeyHeader = "TRON-PRO-API-KEY"
)

type unsignedTx struct {
	TxID       string          `json:"txID"`
	RawData    json.RawMessage `json:"raw_data"`
	RawDataHex string          `json:"raw_data_hex"`
}

type triggerResponse struct {
	Transaction *unsignedTx `json:"transaction"`
	Result      struct {
		Result  bool   `json:"result"`
		Message string `json:"message"`
	} `json:"result"`
}

type broadcastResponse struct {
	Result  bool   `json:"result"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type txInfoResponse struct {
	Id          string `json:"id"`
	BlockNumber int64  `json:"blockNumber"`
	Receipt     struct {
		Result string `json:"result"`
	} `json:"receipt"`
}

func (s *service) buildTransfer(
	destination string, amount decimal.Decimal, memo string,
) (*unsignedTx, error) {
	ownerHex, err := tronutil.AddressToHex(s.address)
	if err != nil {
		return nil, err
	}
	contractHex, err := tronutil.AddressToHex(s.tokenContract)
	if err != nil {
		return nil, err
	}
	destinationHex, err := tronutil.AddressToHex(destination)
	if err != nil {
		return nil, err
	}

	parameter := pad64(destinationHex[2:]) +
		fmt.Sprintf("%064x", tronutil.ToMinorUnits(amount))

	body, _ := json.Marshal(map[string]interface{}{
		"owner_address":     ownerHex,
		"contract_address":  contractHex,
		"function_selector": transferFunctionSelector,
		"parameter":         parameter,
		"fee_limit":         s.feeLimit,
		"call_value":        0,
		"extra_data":        hex.EncodeToString([]byte(memo)),
	})

	url := fmt.Sprintf("%s/wallet/triggersmartcontract", s.apiURL)
	status, resp, err := util.NewHTTPRequest("POST", url, string(body), s.headers())
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("building transaction: %s", resp)
	}

	parsed := &triggerResponse{}
	if err := json.Unmarshal([]byte(resp), parsed); err != nil {
		return nil, err
	}
	if parsed.Transaction == nil || len(parsed.Transaction.TxID) <= 0 {
		return nil, fmt.Errorf("building transaction: %s", decodeApiMessage(parsed.Result.Message))
	}
	return parsed.Transaction, nil
}

// sign produces the 65-byte [R || S || V] signature of the transaction id,
// which is the sha256 digest of the raw transaction the node computed.
func (s *service) sign(txid string) (string, error) {
	digest, err := hex.DecodeString(txid)
	if err != nil {
		return "", err
	}

	compact := ecdsa.SignCompact(s.privateKey, digest, false)

	// SignCompact places the recovery flag first, the network wants it last.
	signature := make([]byte, 0, len(compact))
	signature = append(signature, compact[1:]...)
	signature = append(signature, compact[0]-27)
	return hex.EncodeToString(signature), nil
}

func (s *service) broadcast(unsigned *unsignedTx, signature string) error {
	body, _ := json.Marshal(map[string]interface{}{
		"txID":         unsigned.TxID,
		"raw_data":     unsigned.RawData,
		"raw_data_hex": unsigned.RawDataHex,
		"signature":    []string{signature},
	})

	url := fmt.Sprintf("%s/wallet/broadcasttransaction", s.apiURL)
	status, resp, err := util.NewHTTPRequest("POST", url, string(body), s.headers())
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBroadcastRejected, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrBroadcastRejected, resp)
	}

	parsed := &broadcastResponse{}
	if err := json.Unmarshal([]byte(resp), parsed); err != nil {
		return fmt.Errorf("%w: %s", ErrBroadcastRejected, err)
	}
	if !parsed.Result {
		return fmt.Errorf(
			"%w: %s %s", ErrBroadcastRejected, parsed.Code,
			decodeApiMessage(parsed.Message),
		)
	}
	return nil
}

// awaitConfirmation polls the transaction info endpoint until the transfer
// is included in a block with a successful receipt, the execution is
// reported as reverted, or the context expires.
func (s *service) awaitConfirmation(ctx context.Context, txid string) error {
	url := fmt.Sprintf("%s/wallet/gettransactioninfobyid", s.apiURL)
	body := fmt.Sprintf(`{"value": %q}`, txid)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrConfirmationTimeout, ctx.Err())
		case <-ticker.C:
			status, resp, err := util.NewHTTPRequest("POST", url, body, s.headers())
			if err != nil || status != http.StatusOK {
				continue
			}

			info := &txInfoResponse{}
			if err := json.Unmarshal([]byte(resp), info); err != nil {
				continue
			}
			if len(info.Id) <= 0 || info.BlockNumber <= 0 {
				continue
			}
			if info.Receipt.Result != "" && info.Receipt.Result != "SUCCESS" {
				return fmt.Errorf("%w: %s", ErrTransferReverted, info.Receipt.Result)
			}
			return nil
		}
	}
}

func (s *service) headers() map[string]string {
	if len(s.apiKey) <= 0 {
		return nil
	}
	return map[string]string{apiKeyHeader: s.apiKey}
}

func pad64(s string) string {
	return strings.Repeat("0", 64-len(s)) + s
}

// decodeApiMessage turns the hex-encoded error message of the node API into
// readable text.
func decodeApiMessage(message string) string {
	if buf, err := hex.DecodeString(message); err == nil && len(buf) > 0 {
		return string(buf)
	}
	return message
}
