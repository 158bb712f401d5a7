package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/saltkeeper/internal/flagx"
	"github.com/dmitrijs2005/saltkeeper/internal/timex"
)

// JsonConfig is the on-disk form of Config.
type JsonConfig struct {
	LocalKeyHex         string         `json:"local_key"`
	CustodianEndpoint   string         `json:"custodian_endpoint"`
	CustodianTransport  string         `json:"custodian_transport"`
	CustodianToken      string         `json:"custodian_token"`
	CustodianTimeout    timex.Duration `json:"custodian_timeout"`
	RetryBudget         *int           `json:"retry_budget"`
	SaltExpiryDays      *int           `json:"salt_expiry_days"`
	StoreBackend        string         `json:"store_backend"`
	DatabaseDSN         string         `json:"database_dsn"`
	S3Bucket            string         `json:"s3_bucket"`
	S3Region            string         `json:"s3_region"`
	S3BaseEndpoint      string         `json:"s3_endpoint"`
	S3AccessKey         string         `json:"s3_access_key"`
	S3SecretKey         string         `json:"s3_secret_key"`
	KDFIterations       int            `json:"kdf_iterations"`
	MigrationBatchSize  int            `json:"migration_batch_size"`
	HealthCheckInterval timex.Duration `json:"health_check_interval"`
	AlertThreshold      int            `json:"alert_threshold"`
	LogLevel            string         `json:"log_level"`
}

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

	setString(&config.LocalKeyHex, c.LocalKeyHex)
	setString(&config.CustodianEndpoint, c.CustodianEndpoint)
	setString(&config.CustodianTransport, c.CustodianTransport)
	setString(&config.CustodianToken, c.CustodianToken)
	setString(&config.StoreBackend, c.StoreBackend)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.LogLevel, c.LogLevel)

	if c.CustodianTimeout.Duration > 0 {
		config.CustodianTimeout = c.CustodianTimeout.Duration
	}
	if c.RetryBudget != nil {
		config.RetryBudget = *c.RetryBudget
	}
	if c.SaltExpiryDays != nil {
		config.SaltExpiryDays = *c.SaltExpiryDays
	}
	if c.KDFIterations > 0 {
		config.KDFIterations = c.KDFIterations
	}
	if c.MigrationBatchSize > 0 {
		config.MigrationBatchSize = c.MigrationBatchSize
	}
	if c.HealthCheckInterval.Duration > 0 {
		config.HealthCheckInterval = c.HealthCheckInterval.Duration
	}
	if c.AlertThreshold > 0 {
		config.AlertThreshold = c.AlertThreshold
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
