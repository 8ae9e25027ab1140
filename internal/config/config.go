package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverFile     = "file"

	DefaultContracts = "friends=0x280b971f9405aD604a4EaE50F3AD65Aa092F9f35"
)

// Contract is one monitored contract: name=address[:type].
type Contract struct {
	Name    string
	Address string
	Type    string
}

// KafkaConfig holds publisher settings.
type KafkaConfig struct {
	Enabled               bool
	Brokers               string
	ClientID              string
	TopicUserActions      string
	TopicBlockchainEvents string
	Acks                  string
	Idempotence           bool
	Compression           string
	BatchSize             int
	Linger                time.Duration
	MessageTimeout        time.Duration
	DeliveryTimeout       time.Duration
	MaxMessageBytes       int
	SendMaxAttempts       int
	SendBackoff           time.Duration
	FlushTimeout          time.Duration
}

// StoreConfig selects the checkpoint backend.
type StoreConfig struct {
	Driver     string
	PGDSN      string
	SQLitePath string
	File       string
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL        string
	ChainID       uint64
	StartBlock    uint64
	PollInterval  time.Duration
	BatchSize     uint64
	RPCMaxRetries int
	RPCRetryDelay time.Duration
	RPCTimeout    time.Duration
	ErrorBackoff  time.Duration
	Contracts     []Contract

	Store StoreConfig
	Kafka KafkaConfig

	ArchiveLogs     string
	ShutdownTimeout time.Duration
	MetricsAddr     string
	LogLevel        string
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("checkpoint-driver", DriverPostgres)
	v.SetDefault("sqlite-path", "./data/checkpoints.db")
	v.SetDefault("checkpoint-file", "./data/checkpoints.json")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}

	v.SetDefault("start-block", uint64(9903816))
	v.SetDefault("poll-interval", 2*time.Second)
	v.SetDefault("batch-size", uint64(1000))
	v.SetDefault("rpc-max-retries", 3)
	v.SetDefault("rpc-retry-delay", 500*time.Millisecond)
	v.SetDefault("rpc-timeout", 30*time.Second)
	v.SetDefault("error-backoff", 5*time.Second)
	v.SetDefault("contracts", DefaultContracts)
	v.SetDefault("kafka-enabled", true)
	v.SetDefault("kafka-brokers", "kafka:29092")
	v.SetDefault("kafka-client-id", "theragraph-engine")
	v.SetDefault("kafka-topic-user-actions", "user.actions")
	v.SetDefault("kafka-topic-blockchain-events", "blockchain.events")
	v.SetDefault("kafka-acks", "all")
	v.SetDefault("kafka-idempotence", true)
	v.SetDefault("kafka-compression", "lz4")
	v.SetDefault("kafka-batch-size", 16384)
	v.SetDefault("kafka-linger", 5*time.Millisecond)
	v.SetDefault("kafka-message-timeout", 5*time.Second)
	v.SetDefault("kafka-delivery-timeout", 120*time.Second)
	v.SetDefault("kafka-max-message-bytes", 20*1024*1024)
	v.SetDefault("kafka-send-max-attempts", 5)
	v.SetDefault("kafka-send-backoff", 200*time.Millisecond)
	v.SetDefault("kafka-flush-timeout", 5*time.Second)
	v.SetDefault("shutdown-timeout", 30*time.Second)
	v.SetDefault("metrics-addr", ":9102")

	contracts, err := ParseContracts(getStringSlice(v, "contracts"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:        v.GetString("rpc"),
		ChainID:       v.GetUint64("chain-id"),
		StartBlock:    v.GetUint64("start-block"),
		PollInterval:  v.GetDuration("poll-interval"),
		BatchSize:     v.GetUint64("batch-size"),
		RPCMaxRetries: v.GetInt("rpc-max-retries"),
		RPCRetryDelay: v.GetDuration("rpc-retry-delay"),
		RPCTimeout:    v.GetDuration("rpc-timeout"),
		ErrorBackoff:  v.GetDuration("error-backoff"),
		Contracts:     contracts,

		Store: storeConfig(v),

		Kafka: KafkaConfig{
			Enabled:               v.GetBool("kafka-enabled"),
			Brokers:               v.GetString("kafka-brokers"),
			ClientID:              v.GetString("kafka-client-id"),
			TopicUserActions:      v.GetString("kafka-topic-user-actions"),
			TopicBlockchainEvents: v.GetString("kafka-topic-blockchain-events"),
			Acks:                  v.GetString("kafka-acks"),
			Idempotence:           v.GetBool("kafka-idempotence"),
			Compression:           v.GetString("kafka-compression"),
			BatchSize:             v.GetInt("kafka-batch-size"),
			Linger:                v.GetDuration("kafka-linger"),
			MessageTimeout:        v.GetDuration("kafka-message-timeout"),
			DeliveryTimeout:       v.GetDuration("kafka-delivery-timeout"),
			MaxMessageBytes:       v.GetInt("kafka-max-message-bytes"),
			SendMaxAttempts:       v.GetInt("kafka-send-max-attempts"),
			SendBackoff:           v.GetDuration("kafka-send-backoff"),
			FlushTimeout:          v.GetDuration("kafka-flush-timeout"),
		},

		ArchiveLogs:     v.GetString("archive-logs"),
		ShutdownTimeout: v.GetDuration("shutdown-timeout"),
		MetricsAddr:     v.GetString("metrics-addr"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate rejects settings the indexer cannot start with.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return errors.New("rpc url is required")
	}
	u, err := url.Parse(c.RPCURL)
	if err != nil {
		return fmt.Errorf("invalid rpc url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("unsupported rpc url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("rpc url has no host")
	}

	if len(c.Contracts) == 0 {
		return errors.New("at least one contract is required")
	}
	names := make(map[string]struct{}, len(c.Contracts))
	for _, contract := range c.Contracts {
		if err := ValidateAddress(contract.Address); err != nil {
			return fmt.Errorf("contract %s: %w", contract.Name, err)
		}
		if _, dup := names[contract.Name]; dup {
			return fmt.Errorf("duplicate contract name %q", contract.Name)
		}
		names[contract.Name] = struct{}{}
	}

	if c.BatchSize == 0 {
		return errors.New("batch size must be greater than zero")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be greater than zero")
	}

	if err := c.Store.Validate(); err != nil {
		return err
	}

	if c.Kafka.Enabled && strings.TrimSpace(c.Kafka.Brokers) == "" {
		return errors.New("kafka brokers are required when kafka is enabled")
	}
	return nil
}

// LoadStore reads only the checkpoint backend settings.
func LoadStore(cfgFile string, flags *pflag.FlagSet) (StoreConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return StoreConfig{}, err
	}
	return storeConfig(v), nil
}

func storeConfig(v *viper.Viper) StoreConfig {
	return StoreConfig{
		Driver:     strings.ToLower(v.GetString("checkpoint-driver")),
		PGDSN:      v.GetString("pg-dsn"),
		SQLitePath: v.GetString("sqlite-path"),
		File:       v.GetString("checkpoint-file"),
	}
}

// Validate checks that the selected driver has its target configured.
func (s StoreConfig) Validate() error {
	switch s.Driver {
	case DriverPostgres:
		if s.PGDSN == "" {
			return errors.New("pg-dsn is required for the postgres checkpoint driver")
		}
	case DriverSQLite:
		if s.SQLitePath == "" {
			return errors.New("sqlite-path is required for the sqlite checkpoint driver")
		}
	case DriverFile:
		if s.File == "" {
			return errors.New("checkpoint-file is required for the file checkpoint driver")
		}
	default:
		return fmt.Errorf("unknown checkpoint driver %q", s.Driver)
	}
	return nil
}

// ValidateAddress accepts only 0x-prefixed 20-byte hex addresses.
func ValidateAddress(address string) error {
	if !strings.HasPrefix(address, "0x") || len(address) != 42 || !common.IsHexAddress(address) {
		return fmt.Errorf("invalid address: %s", address)
	}
	return nil
}

// ParseContracts parses name=address[:type] entries. The type defaults to the name.
func ParseContracts(inputs []string) ([]Contract, error) {
	contracts := make([]Contract, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		name, rest, ok := strings.Cut(input, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid contract %q: want name=address[:type]", input)
		}
		address, contractType, _ := strings.Cut(strings.TrimSpace(rest), ":")
		address = strings.TrimSpace(address)
		contractType = strings.TrimSpace(contractType)
		if contractType == "" {
			contractType = name
		}
		if err := ValidateAddress(address); err != nil {
			return nil, fmt.Errorf("contract %s: %w", name, err)
		}
		contracts = append(contracts, Contract{Name: name, Address: address, Type: contractType})
	}
	return contracts, nil
}

// MaskURL hides the password and drops the query string of a URL so it can be logged.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.RawQuery = ""
	u.ForceQuery = false
	return u.Redacted()
}

// FormatAddress shortens an address for log output: 0x123456...7890.
func FormatAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:8] + "..." + address[len(address)-4:]
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
