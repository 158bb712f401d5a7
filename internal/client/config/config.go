package config

import "time"

// Transports understood by the custodian client.
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// Response store backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// Config holds runtime settings for sealctl.
type Config struct {
	LocalKeyHex string `env:"SEALCTL_LOCAL_KEY"`

	CustodianEndpoint  string        `env:"SEALCTL_CUSTODIAN_ENDPOINT"`
	CustodianTransport string        `env:"SEALCTL_CUSTODIAN_TRANSPORT"`
	CustodianToken     string        `env:"SEALCTL_CUSTODIAN_TOKEN"`
	CustodianTimeout   time.Duration `env:"SEALCTL_CUSTODIAN_TIMEOUT"`
	RetryBudget        int           `env:"SEALCTL_RETRY_BUDGET"`
	// SaltExpiryDays is sent with every Store; 0 leaves it to the custodian.
	SaltExpiryDays int `env:"SEALCTL_SALT_EXPIRY_DAYS"`

	StoreBackend string `env:"SEALCTL_STORE_BACKEND"`
	DatabaseDSN  string `env:"SEALCTL_DATABASE_DSN"`

	S3Bucket       string `env:"SEALCTL_S3_BUCKET"`
	S3Region       string `env:"SEALCTL_S3_REGION"`
	S3BaseEndpoint string `env:"SEALCTL_S3_ENDPOINT"`
	S3AccessKey    string `env:"SEALCTL_S3_ACCESS_KEY"`
	S3SecretKey    string `env:"SEALCTL_S3_SECRET_KEY"`

	KDFIterations      int `env:"SEALCTL_KDF_ITERATIONS"`
	MigrationBatchSize int `env:"SEALCTL_MIGRATION_BATCH"`

	HealthCheckInterval time.Duration `env:"SEALCTL_HEALTH_INTERVAL"`
	AlertThreshold      int           `env:"SEALCTL_ALERT_THRESHOLD"`

	LogLevel string `env:"SEALCTL_LOG_LEVEL"`
}

// LoadDefaults sets defaults suitable for a single host development setup.
func (c *Config) LoadDefaults() {
	c.CustodianEndpoint = "http://127.0.0.1:8081"
	c.CustodianTransport = TransportHTTP
	c.CustodianTimeout = 8 * time.Second
	c.RetryBudget = 3
	c.StoreBackend = BackendSQLite
	c.DatabaseDSN = "file:saltkeeper.db"
	c.S3Region = "us-east-1"
	c.KDFIterations = 600000
	c.MigrationBatchSize = 100
	c.HealthCheckInterval = 30 * time.Second
	c.AlertThreshold = 3
	c.LogLevel = "warn"
}

// LoadConfig builds a Config from defaults, an optional JSON file, the
// environment and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
