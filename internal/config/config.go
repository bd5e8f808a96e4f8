package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Cron       CronConfig       `mapstructure:"cron"`
	Auction    AuctionConfig    `mapstructure:"auction"`
	Escrow     EscrowConfig     `mapstructure:"escrow"`
	Settlement SettlementConfig `mapstructure:"settlement"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Lifecycle         string `mapstructure:"lifecycle"`
	SettlementTimeout string `mapstructure:"settlement_timeout"`
}

type AuctionConfig struct {
	// A bid landing within SnipeWindow of end_time extends the auction by
	// SnipeExtension. There is no cap on the number of extensions.
	SnipeWindow    time.Duration `mapstructure:"snipe_window"`
	SnipeExtension time.Duration `mapstructure:"snipe_extension"`

	// Deposits above this amount require a KYC-verified bidder.
	KYCDepositThreshold float64 `mapstructure:"kyc_deposit_threshold"`
}

type EscrowConfig struct {
	CommitmentPct  int64   `mapstructure:"commitment_pct"`
	UpgradePct     int64   `mapstructure:"upgrade_pct"`
	CommissionRate float64 `mapstructure:"commission_rate"`
}

type SettlementConfig struct {
	// Winners failing to complete escrow within Deadline of auction end
	// forfeit their held funds.
	Deadline  time.Duration `mapstructure:"deadline"`
	SweepSize int           `mapstructure:"sweep_size"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.lifecycle", "@every 30s")
	v.SetDefault("cron.settlement_timeout", "@every 5m")
	v.SetDefault("auction.snipe_window", "2m")
	v.SetDefault("auction.snipe_extension", "2m")
	v.SetDefault("auction.kyc_deposit_threshold", 100000000)
	v.SetDefault("escrow.commitment_pct", 10)
	v.SetDefault("escrow.upgrade_pct", 70)
	v.SetDefault("escrow.commission_rate", 0.05)
	v.SetDefault("settlement.deadline", "48h")
	v.SetDefault("settlement.sweep_size", 200)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
