package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tdex-network/escrowd/internal/core/application"
	"github.com/tdex-network/escrowd/pkg/callertoken"
	"github.com/tdex-network/escrowd/pkg/mathutil"

	"github.com/spf13/viper"
)

const (
	// ListeningPortKey is the port where the HTTP interface will listen on
	ListeningPortKey = "LISTENING_PORT"
	// DatadirKey is the local data directory to store the internal state of daemon
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// DBTypeKey is used to switch database type between those supported
	DBTypeKey = "DB_TYPE"
	// OwnerAddressKey is the account allowed to refund orders, add supported
	// tokens and withdraw the ledger's balances
	OwnerAddressKey = "OWNER_ADDRESS"
	// LedgerAddressKey is the custody account holding the funds of the ledger
	LedgerAddressKey = "LEDGER_ADDRESS"
	// MinimumPaymentKey is the minimum order amount in base units
	MinimumPaymentKey = "MINIMUM_PAYMENT"
	// AuthSecretKey is the HS256 secret used to verify callers' tokens
	AuthSecretKey = "AUTH_SECRET"
	// NoAuthKey is used to start the daemon trusting the caller header instead
	// of verifying tokens. For development only.
	NoAuthKey = "NO_AUTH"
	// MaxConnectionsKey caps the number of simultaneous connections accepted
	// by the listener, 0 means no limit
	MaxConnectionsKey = "MAX_CONNECTIONS"
	// WebhookTimeoutKey is the timeout in seconds of a webhook request
	WebhookTimeoutKey = "WEBHOOK_TIMEOUT"
	// WebhookRateLimitKey is the max number of webhook requests per second, 0
	// means no limit
	WebhookRateLimitKey = "WEBHOOK_RATE_LIMIT"
	// EnableMetricsKey exposes prometheus metrics at /metrics
	EnableMetricsKey = "ENABLE_METRICS"
	// EnableFaucetKey exposes the endpoints to fund accounts in the custody
	// simulation
	EnableFaucetKey = "ENABLE_FAUCET"
	// EnableProfilerKey enables periodic logging of memory statistics
	EnableProfilerKey = "ENABLE_PROFILER"
	// StatsIntervalKey defines interval in seconds for printing memory statistics
	StatsIntervalKey = "STATS_INTERVAL"

	DbLocation     = "db"
	PubSubLocation = "pubsub"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("escrowd", false)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("ESCROW")
	vip.AutomaticEnv()

	vip.SetDefault(ListeningPortKey, 9945)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(DBTypeKey, application.DBBadger)
	vip.SetDefault(LedgerAddressKey, application.DefaultLedgerAddress.Hex())
	vip.SetDefault(MinimumPaymentKey, application.DefaultMinimumPayment.String())
	vip.SetDefault(NoAuthKey, false)
	vip.SetDefault(MaxConnectionsKey, 0)
	vip.SetDefault(WebhookTimeoutKey, 15)
	vip.SetDefault(WebhookRateLimitKey, 0)
	vip.SetDefault(EnableMetricsKey, false)
	vip.SetDefault(EnableFaucetKey, false)
	vip.SetDefault(EnableProfilerKey, false)
	vip.SetDefault(StatsIntervalKey, 600)

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

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

func GetOwner() common.Address {
	owner, _ := callertoken.ParseAddress(GetString(OwnerAddressKey))
	return owner
}

func GetLedgerAddress() common.Address {
	ledger, _ := callertoken.ParseAddress(GetString(LedgerAddressKey))
	return ledger
}

func GetMinimumPayment() *big.Int {
	amount, _ := mathutil.ParseBaseUnits(GetString(MinimumPaymentKey))
	return amount
}

// GetWebhookTimeout returns the timeout for webhook requests. Values without
// a unit are interpreted as seconds.
func GetWebhookTimeout() time.Duration {
	if d := GetDuration(WebhookTimeoutKey); d >= time.Millisecond {
		return d
	}
	return time.Duration(GetInt(WebhookTimeoutKey)) * time.Second
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	dbType := strings.ToLower(GetString(DBTypeKey))
	if _, ok := application.SupportedDBType[dbType]; !ok {
		return fmt.Errorf("%s: unsupported db type %s", DBTypeKey, dbType)
	}
	vip.Set(DBTypeKey, dbType)

	owner, err := callertoken.ParseAddress(GetString(OwnerAddressKey))
	if err != nil || owner == (common.Address{}) {
		return fmt.Errorf("%s must be a valid non-zero hex address", OwnerAddressKey)
	}
	ledger, err := callertoken.ParseAddress(GetString(LedgerAddressKey))
	if err != nil || ledger == (common.Address{}) {
		return fmt.Errorf("%s must be a valid non-zero hex address", LedgerAddressKey)
	}
	if ledger == owner {
		return fmt.Errorf(
			"%s must be different from %s", LedgerAddressKey, OwnerAddressKey,
		)
	}

	minPayment, err := mathutil.ParseBaseUnits(GetString(MinimumPaymentKey))
	if err != nil {
		return fmt.Errorf("%s: %s", MinimumPaymentKey, err)
	}
	if minPayment.Sign() <= 0 {
		return fmt.Errorf("%s must be greater than zero", MinimumPaymentKey)
	}

	if !GetBool(NoAuthKey) && len(GetString(AuthSecretKey)) <= 0 {
		return fmt.Errorf(
			"%s is required unless %s is enabled", AuthSecretKey, NoAuthKey,
		)
	}

	if GetInt(MaxConnectionsKey) < 0 {
		return fmt.Errorf("%s must not be negative", MaxConnectionsKey)
	}
	if GetInt(WebhookRateLimitKey) < 0 {
		return fmt.Errorf("%s must not be negative", WebhookRateLimitKey)
	}

	return nil
}

func initDatadir() error {
	if GetString(DBTypeKey) != application.DBBadger {
		return nil
	}

	datadir := GetDatadir()
	if err := makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation)); err != nil {
		return err
	}
	return makeDirectoryIfNotExists(filepath.Join(datadir, PubSubLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
