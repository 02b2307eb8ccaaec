package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings is the typed view of the viper configuration.
type Settings struct {
	Env           string `mapstructure:"ENV"`
	APIPort       int    `mapstructure:"api_port"`
	AllowedOrigin string `mapstructure:"allowed_origin"`
	DBPath        string `mapstructure:"db_path"`
	LogFile       string `mapstructure:"log_file"`
	LogLevel      string `mapstructure:"log_level"`
	Network       string `mapstructure:"network"`

	FundingSource    string `mapstructure:"funding_source"`
	FakeWalletSecret string `mapstructure:"fake_wallet_secret"`
	LndRPCServer     string `mapstructure:"lnd_rpc_server"`
	LndTLSCertPath   string `mapstructure:"lnd_tls_cert_path"`
	LndMacaroonPath  string `mapstructure:"lnd_macaroon_path"`

	AmilkConfirmAttempts int           `mapstructure:"amilk_confirm_attempts"`
	AmilkBackoffUnit     time.Duration `mapstructure:"amilk_backoff_unit"`
	LnurlTimeout         time.Duration `mapstructure:"lnurl_timeout"`
	LnurlAllowInsecure   bool          `mapstructure:"lnurl_allow_insecure"`

	PaywallCheckRate  float64  `mapstructure:"paywall_check_rate"`
	PaywallCheckBurst int      `mapstructure:"paywall_check_burst"`
	TrustedProxies    []string `mapstructure:"trusted_proxies"`
}

// LoadConfig loads the configuration and sets default values for development/production
func LoadConfig() error {
	// A missing .env is fine, it only supplies overrides.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error loading .env file: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("bridge")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createDefaultConfig()
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	setDefaults()

	return nil
}

// Current unmarshals the loaded configuration into Settings.
func Current() (Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("error decoding config: %w", err)
	}
	if err := s.validate(); err != nil {
		return s, err
	}
	return s, nil
}

func (s Settings) validate() error {
	if s.AmilkConfirmAttempts < 1 {
		return fmt.Errorf("amilk_confirm_attempts must be at least 1, got %d", s.AmilkConfirmAttempts)
	}
	if s.AmilkBackoffUnit < 0 {
		return fmt.Errorf("amilk_backoff_unit must not be negative, got %s", s.AmilkBackoffUnit)
	}
	return nil
}

// setDefaults sets default configuration values based on the environment
func setDefaults() {
	env := viper.GetString("ENV")
	if env == "" {
		env = "development"
		viper.Set("ENV", env)
	}

	if env == "development" {
		viper.SetDefault("allowed_origin", "*")
		viper.SetDefault("db_path", "./data/dev_bridge.db")
		viper.SetDefault("log_level", "debug")
		viper.SetDefault("network", "regtest")
		viper.SetDefault("lnurl_allow_insecure", true)
	} else if env == "production" {
		viper.SetDefault("allowed_origin", "https://my-production-site.com")
		viper.SetDefault("db_path", "/var/lib/ln-bridge/bridge.db")
		viper.SetDefault("log_level", "info")
		viper.SetDefault("network", "mainnet")
		viper.SetDefault("lnurl_allow_insecure", false)
	}

	viper.SetDefault("api_port", 5000)
	viper.SetDefault("log_file", "bridge.log")

	// The fake node never sees outside payments: its invoices settle through
	// internal payments or `wallet settle`.
	viper.SetDefault("funding_source", "fake")
	viper.SetDefault("fake_wallet_secret", "ToTheMoon1")
	viper.SetDefault("lnd_rpc_server", "localhost:10009")
	viper.SetDefault("lnd_tls_cert_path", "~/.lnd/tls.cert")
	viper.SetDefault("lnd_macaroon_path", "~/.lnd/data/chain/bitcoin/mainnet/admin.macaroon")

	viper.SetDefault("amilk_confirm_attempts", 10)
	viper.SetDefault("amilk_backoff_unit", "1s")
	viper.SetDefault("lnurl_timeout", "20s")

	viper.SetDefault("paywall_check_rate", 2.0)
	viper.SetDefault("paywall_check_burst", 5)
	// Peers allowed to set X-Forwarded-For / X-Real-IP, as IPs or CIDRs.
	viper.SetDefault("trusted_proxies", []string{})
}

// createDefaultConfig creates a new configuration file if it doesn't exist
func createDefaultConfig() error {
	setDefaults()

	err := viper.SafeWriteConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileAlreadyExistsError); ok {
			err = viper.WriteConfig()
			if err != nil {
				return fmt.Errorf("error writing config file: %w", err)
			}
		} else {
			return fmt.Errorf("error creating config file: %w", err)
		}
	}

	fmt.Println("Created default configuration file")
	return nil
}
