package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/tradeguard-network/tradeguard-daemon/pkg/tronutil"
)

const (
	// DatadirKey is the local data directory to store the internal state of daemon
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// BotTokenKey is the chat platform token the daemon authenticates with
	BotTokenKey = "BOT_TOKEN"
	// BotApiURLKey overrides the chat platform endpoint, mainly for tests and self-hosted gateways
	BotApiURLKey = "BOT_API_URL"
	// AdminIdKey is the chat user id allowed to run administrative commands
	AdminIdKey = "ADMIN_ID"
	// TronApiURLKey is the endpoint of the TRON data provider
	TronApiURLKey = "TRON_API_URL"
	// TronApiKeyKey is the optional api key sent to the TRON data provider
	TronApiKeyKey = "TRON_API_KEY"
	// UsdtContractKey is the TRC-20 contract address of the settlement token
	UsdtContractKey = "USDT_CONTRACT"
	// OperatorAddressKey is the deposit address all escrowed funds flow through
	OperatorAddressKey = "OPERATOR_ADDRESS"
	// OperatorPrivateKeyKey is the hex-encoded private key of the operator address
	OperatorPrivateKeyKey = "OPERATOR_PRIVATE_KEY"
	// NormalCommissionKey is the commission rate withheld from seller payouts
	NormalCommissionKey = "NORMAL_COMMISSION"
	// ReducedCommissionKey is the commission rate applied to over-payment refunds
	ReducedCommissionKey = "REDUCED_COMMISSION"
	// NetworkFeeKey is the flat fee subtracted from every outgoing transfer before the commission applies
	NetworkFeeKey = "NETWORK_FEE"
	// TransferFeeLimitKey is the maximum fee budget of one transfer, in sun
	TransferFeeLimitKey = "TRANSFER_FEE_LIMIT"
	// SweepIntervalKey is the pause in seconds between two passes of the background deposit sweep
	SweepIntervalKey = "SWEEP_INTERVAL"

	// DbLocation is the folder inside the datadir containing db files
	DbLocation = "db"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("tradeguard-daemon", false)

// InitConfig initializes the config with defaults and env vars
func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("TRADEGUARD")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(BotApiURLKey, "https://api.telegram.org")
	vip.SetDefault(TronApiURLKey, "https://api.trongrid.io")
	vip.SetDefault(UsdtContractKey, "TXLAQ63Xg1NAzckPwKHvzw7CSEmLMEqcdj")
	vip.SetDefault(OperatorAddressKey, "TT8AZ3dCpgWJQSw9EXhhyR3uKj81jXxbRB")
	vip.SetDefault(NormalCommissionKey, "0.05")
	vip.SetDefault(ReducedCommissionKey, "0.025")
	vip.SetDefault(NetworkFeeKey, "0")
	vip.SetDefault(TransferFeeLimitKey, 1000000)
	vip.SetDefault(SweepIntervalKey, 60)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetInt64(key string) int64 {
	return vip.GetInt64(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

// GetDecimal parses the value of the given key as an arbitrary-precision
// decimal. Commission rates and fees must never go through float64.
func GetDecimal(key string) decimal.Decimal {
	d, err := decimal.NewFromString(vip.GetString(key))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	if !vip.IsSet(BotTokenKey) {
		return fmt.Errorf("missing bot token")
	}

	if err := tronutil.ValidateAddress(GetString(OperatorAddressKey)); err != nil {
		return fmt.Errorf("invalid operator address: %w", err)
	}
	if err := tronutil.ValidateAddress(GetString(UsdtContractKey)); err != nil {
		return fmt.Errorf("invalid token contract address: %w", err)
	}

	if !vip.IsSet(OperatorPrivateKeyKey) {
		return fmt.Errorf("missing operator private key")
	}
	if _, err := hex.DecodeString(GetString(OperatorPrivateKeyKey)); err != nil {
		return fmt.Errorf("operator private key must be hex encoded")
	}

	if !vip.IsSet(AdminIdKey) {
		return fmt.Errorf("missing admin id")
	}

	for _, key := range []string{
		NormalCommissionKey, ReducedCommissionKey, NetworkFeeKey,
	} {
		rate, err := decimal.NewFromString(GetString(key))
		if err != nil {
			return fmt.Errorf("%s must be a decimal number", key)
		}
		if rate.IsNegative() {
			return fmt.Errorf("%s must not be negative", key)
		}
	}
	one := decimal.NewFromInt(1)
	if GetDecimal(NormalCommissionKey).GreaterThanOrEqual(one) ||
		GetDecimal(ReducedCommissionKey).GreaterThanOrEqual(one) {
		return fmt.Errorf("commission rates must be below 1")
	}

	return nil
}

func initDatadir() error {
	return makeDirectoryIfNotExists(filepath.Join(GetDatadir(), DbLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
