package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort      string        `mapstructure:"SERVER_PORT"`
	SnapshotBackend string        `mapstructure:"SNAPSHOT_BACKEND"`
	SnapshotPath    string        `mapstructure:"SNAPSHOT_PATH"`
	PostgresURL     string        `mapstructure:"POSTGRES_URL"`
	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	RedisPassword   string        `mapstructure:"REDIS_PASSWORD"`
	HostGrace       time.Duration `mapstructure:"HOST_GRACE"`
	EmptyGrace      time.Duration `mapstructure:"EMPTY_GRACE"`
	SweepInterval   time.Duration `mapstructure:"SWEEP_INTERVAL"`
	SnapshotFlush   time.Duration `mapstructure:"SNAPSHOT_FLUSH"`
}

func Load() Config {
	viper.AutomaticEnv()
	viper.SetDefault("SERVER_PORT", ":8000")
	viper.SetDefault("SNAPSHOT_BACKEND", "file")
	viper.SetDefault("SNAPSHOT_PATH", "sessions.json")
	viper.SetDefault("POSTGRES_URL", "")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("HOST_GRACE", "30m")
	viper.SetDefault("EMPTY_GRACE", "5m")
	viper.SetDefault("SWEEP_INTERVAL", "60s")
	viper.SetDefault("SNAPSHOT_FLUSH", "2s")

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	return cfg
}
