package config

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

// Flags holds command line overrides bound to a flag set.
type Flags struct {
	fs *flag.FlagSet

	ConfigFile string
	Version    bool

	grpcAddr       string
	httpAddr       string
	tlsCert        string
	tlsKey         string
	dev            bool
	dbType         string
	dbDSN          string
	dbSQLitePath   string
	programID      string
	governmentKeys []string
	limiterEnabled bool
	redisURL       string
	kafkaBrokers   []string
	kafkaTopic     string
	logLevel       string
	logFormat      string
}

// NewFlags defines the server flags on fs.
func NewFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}

	fs.StringVarP(&f.ConfigFile, "config", "c", "config.yaml", "Path to configuration file")
	fs.BoolVarP(&f.Version, "version", "v", false, "Print version and exit")

	fs.StringVar(&f.grpcAddr, "server.grpc-addr", "", "gRPC listen address")
	fs.StringVar(&f.httpAddr, "server.http-addr", "", "HTTP listen address (empty disables)")
	fs.StringVar(&f.tlsCert, "server.tls-cert", "", "TLS certificate (PEM)")
	fs.StringVar(&f.tlsKey, "server.tls-key", "", "TLS private key (PEM)")
	fs.BoolVar(&f.dev, "server.dev", false, "Enable gRPC reflection (dev only)")

	fs.StringVar(&f.dbType, "db.type", "", "Database type (postgres, sqlite or memory)")
	fs.StringVar(&f.dbDSN, "db.dsn", "", "PostgreSQL DSN")
	fs.StringVar(&f.dbSQLitePath, "db.sqlite-path", "", "SQLite database file path")

	fs.StringVar(&f.programID, "registry.program-id", "", "Program identity that scopes derived addresses")
	fs.StringSliceVar(&f.governmentKeys, "registry.government-keys", nil, "Keys allowed to register as Government (repeatable)")

	fs.BoolVar(&f.limiterEnabled, "limiter.enabled", true, "Throttle callers with repeated authorization failures")
	fs.StringVar(&f.redisURL, "redis.url", "", "Redis URL for the snapshot cache (empty disables)")
	fs.StringSliceVar(&f.kafkaBrokers, "kafka.brokers", nil, "Kafka seed brokers (empty disables events)")
	fs.StringVar(&f.kafkaTopic, "kafka.topic", "", "Kafka topic for transition events")

	fs.StringVarP(&f.logLevel, "log.level", "l", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log.format", "", "Log format (json or console)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", fs.Name())
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nConfiguration priority (highest to lowest):\n")
		fmt.Fprintf(os.Stderr, "  1. Command line flags\n")
		fmt.Fprintf(os.Stderr, "  2. Environment variables (VR_*)\n")
		fmt.Fprintf(os.Stderr, "  3. Configuration file (default: config.yaml)\n")
	}
	return f
}

func (f *Flags) apply(c *Config) {
	set := func(name string, fn func()) {
		if fl := f.fs.Lookup(name); fl != nil && fl.Changed {
			fn()
		}
	}
	set("server.grpc-addr", func() { c.Server.GRPCAddr = f.grpcAddr })
	set("server.http-addr", func() { c.Server.HTTPAddr = f.httpAddr })
	set("server.tls-cert", func() { c.Server.TLSCert = f.tlsCert })
	set("server.tls-key", func() { c.Server.TLSKey = f.tlsKey })
	set("server.dev", func() { c.Server.Dev = f.dev })
	set("db.type", func() { c.Database.Type = f.dbType })
	set("db.dsn", func() { c.Database.DSN = f.dbDSN })
	set("db.sqlite-path", func() { c.Database.SQLitePath = f.dbSQLitePath })
	set("registry.program-id", func() { c.Registry.ProgramID = f.programID })
	set("registry.government-keys", func() { c.Registry.GovernmentKeys = f.governmentKeys })
	set("limiter.enabled", func() { c.Limiter.Enabled = f.limiterEnabled })
	set("redis.url", func() { c.Redis.URL = f.redisURL })
	set("kafka.brokers", func() { c.Kafka.Brokers = f.kafkaBrokers })
	set("kafka.topic", func() { c.Kafka.Topic = f.kafkaTopic })
	set("log.level", func() { c.Logging.Level = f.logLevel })
	set("log.format", func() { c.Logging.Format = f.logFormat })
}
