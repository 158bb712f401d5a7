package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/saltkeeper/internal/flagx"
	"github.com/dmitrijs2005/saltkeeper/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations use timex.Duration so
// both "1h" and integer nanoseconds are accepted. Absent keys keep the
// value the Config already has.
type JsonConfig struct {
	EndpointAddrHTTP      string          `json:"endpoint_addr_http"`
	EndpointAddrGRPC      string          `json:"endpoint_addr_grpc"`
	DatabaseDSN           string          `json:"database_dsn"`
	SecretKey             string          `json:"secret_key"`
	TokenValidityDuration timex.Duration  `json:"token_validity_duration"`
	DefaultExpiryDays     *int            `json:"default_expiry_days"`
	CleanupInterval       *timex.Duration `json:"cleanup_interval"`
	MaxSaltBytes          int             `json:"max_salt_bytes"`
	MaxBodyBytes          int64           `json:"max_body_bytes"`
	ReadRatePerMinute     int             `json:"read_rate_per_minute"`
	WriteRatePerMinute    int             `json:"write_rate_per_minute"`
	LogLevel              string          `json:"log_level"`
}

// parseJson loads the file named by -c/-config into config. Without the
// flag nothing happens; unreadable or invalid files panic.
func parseJson(config *Config) {

	jsonConfigFile := flagx.ConfigPath(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LogLevel, c.LogLevel)

	if c.TokenValidityDuration.Duration > 0 {
		config.TokenValidityDuration = c.TokenValidityDuration.Duration
	}
	// zero is meaningful for these two
	if c.DefaultExpiryDays != nil {
		config.DefaultExpiryDays = *c.DefaultExpiryDays
	}
	if c.CleanupInterval != nil {
		config.CleanupInterval = c.CleanupInterval.Duration
	}
	if c.MaxSaltBytes > 0 {
		config.MaxSaltBytes = c.MaxSaltBytes
	}
	if c.MaxBodyBytes > 0 {
		config.MaxBodyBytes = c.MaxBodyBytes
	}
	if c.ReadRatePerMinute > 0 {
		config.ReadRatePerMinute = c.ReadRatePerMinute
	}
	if c.WriteRatePerMinute > 0 {
		config.WriteRatePerMinute = c.WriteRatePerMinute
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
