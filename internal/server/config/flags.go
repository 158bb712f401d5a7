package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   REST bind address (e.g., ":8081")
//	-g string   gRPC bind address, empty disables gRPC
//	-d string   PostgreSQL DSN, or "memory"
//	-s string   bearer token HMAC secret
//	-t int      issued token validity, hours
//	-x int      default salt expiry, days (0 = never)
//	-i int      expiry sweep interval, minutes (0 = off)
//	-r int      read requests per minute per client
//	-w int      write requests per minute per client
//	-l string   log level
//
// Only these flags are picked out of os.Args (flagx.FilterArgs), so
// subcommands can define their own.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-s", "-t", "-x", "-i", "-r", "-w", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "REST address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenValidity := fs.Int("t", int(config.TokenValidityDuration.Hours()), "token validity (in hours)")
	fs.IntVar(&config.DefaultExpiryDays, "x", config.DefaultExpiryDays, "default salt expiry (in days)")
	cleanupInterval := fs.Int("i", int(config.CleanupInterval.Minutes()), "cleanup interval (in minutes)")

	fs.IntVar(&config.ReadRatePerMinute, "r", config.ReadRatePerMinute, "read requests per minute")
	fs.IntVar(&config.WriteRatePerMinute, "w", config.WriteRatePerMinute, "write requests per minute")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// unit-converted flags only override when given, so finer JSON or env values survive
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.TokenValidityDuration = time.Duration(*tokenValidity) * time.Hour
		case "i":
			config.CleanupInterval = time.Duration(*cleanupInterval) * time.Minute
		}
	})
}
