package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/flagx"
)

func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-m", "-t", "-b", "-d", "-o", "-i", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.CustodianEndpoint, "a", config.CustodianEndpoint, "custodian endpoint")
	fs.StringVar(&config.CustodianTransport, "m", config.CustodianTransport, "custodian transport (http|grpc)")
	fs.StringVar(&config.CustodianToken, "t", config.CustodianToken, "custodian bearer token")
	fs.StringVar(&config.StoreBackend, "b", config.StoreBackend, "response store backend (sqlite|postgres|s3)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "response store DSN")

	timeout := fs.Int("o", int(config.CustodianTimeout.Seconds()), "custodian call timeout (in seconds)")
	interval := fs.Int("i", int(config.HealthCheckInterval.Seconds()), "health watch interval (in seconds)")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "o":
			config.CustodianTimeout = time.Duration(*timeout) * time.Second
		case "i":
			config.HealthCheckInterval = time.Duration(*interval) * time.Second
		}
	})
}
