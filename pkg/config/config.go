package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Admin modes of a ledger
const (
	AdminModeOwner = "owner"
	AdminModeRole  = "role"
)

// Caller authentication modes of the HTTP surface
const (
	AuthModeSignature = "signature"
	AuthModeHeader    = "header"
)

// EnvDatabasePassword overrides database.password when set.
const EnvDatabasePassword = "BRIDGE_DATABASE_PASSWORD"

// Config represents the bridge service configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Store      StoreConfig      `yaml:"store"`
	Auth       AuthConfig       `yaml:"auth"`
	Bridges    BridgesConfig    `yaml:"bridges"`
	Tokens     TokensConfig     `yaml:"tokens"`
	EthRPC     EthRPCConfig     `yaml:"eth_rpc"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Shutdown   ShutdownConfig   `yaml:"shutdown"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" default:"60s"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"5432"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database" default:"bridge"`
	SSLMode  string `yaml:"ssl_mode" default:"disable" validate:"oneof=disable require verify-ca verify-full"`
}

// StoreConfig selects the state backend
type StoreConfig struct {
	Backend string `yaml:"backend" default:"memory" validate:"oneof=memory postgres"`
}

// AuthConfig selects how HTTP callers are identified
type AuthConfig struct {
	// Mode is "signature" (EIP-191 signature over the request body in
	// X-Signature) or "header" (trusted X-Caller header, for local setups).
	Mode string `yaml:"mode" default:"signature" validate:"oneof=signature header"`
	// MaxRequestAge bounds how far in the future a signed request may set
	// its expires_at.
	MaxRequestAge time.Duration `yaml:"max_request_age" default:"5m" validate:"gt=0"`
}

// BridgesConfig holds both bridge controllers
type BridgesConfig struct {
	Private BridgeConfig `yaml:"private"`
	Public  BridgeConfig `yaml:"public"`
}

// BridgeConfig contains the settings of one bridge controller
type BridgeConfig struct {
	// Address is the bridge's own account: the custody account on the
	// private ledger and the minter/burner on the public ledger.
	Address string   `yaml:"address" validate:"required,eth_addr"`
	Admins  []string `yaml:"admins" validate:"min=1,dive,eth_addr"`
	Oracles []string `yaml:"oracles" validate:"dive,eth_addr"`
}

// TokensConfig holds both ledgers
type TokensConfig struct {
	Private TokenConfig `yaml:"private"`
	Public  TokenConfig `yaml:"public"`
}

// TokenConfig contains the settings of one ledger
type TokenConfig struct {
	ID          string   `yaml:"id" validate:"required,alphanum,max=64"`
	Name        string   `yaml:"name" validate:"required"`
	Symbol      string   `yaml:"symbol" validate:"required"`
	Decimals    uint8    `yaml:"decimals" default:"18" validate:"lte=36"`
	FeeDecimals uint8    `yaml:"fee_decimals" default:"6" validate:"lte=18"`
	AdminMode   string   `yaml:"admin_mode" default:"owner" validate:"oneof=owner role"`
	Admins      []string `yaml:"admins" validate:"min=1,dive,eth_addr"`
	AdminMint   bool     `yaml:"admin_mint"`
	// BindBridge sets the bridge address to the matching bridge controller at
	// startup when the ledger has none yet.
	BindBridge   bool              `yaml:"bind_bridge" default:"true"`
	FeeCollector string            `yaml:"fee_collector" validate:"omitempty,eth_addr"`
	RoleFees     map[uint32]string `yaml:"role_fees"`
	// ContractAddress is the address wallets use for the ledger on the
	// JSON-RPC facade. Ledgers without one are not exposed there.
	ContractAddress string `yaml:"contract_address" validate:"omitempty,eth_addr"`
}

// EthRPCConfig contains the read-only Ethereum JSON-RPC facade settings
type EthRPCConfig struct {
	Enabled bool   `yaml:"enabled"`
	ChainID uint64 `yaml:"chain_id" default:"1337" validate:"min=1"`
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error dpanic panic fatal"`
	Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
	OutputPath string `yaml:"output_path" default:"stdout"`
}

// ShutdownConfig contains graceful shutdown settings
type ShutdownConfig struct {
	Timeout time.Duration `yaml:"timeout" default:"30s"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes, defaults and validates a YAML configuration document.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyTokenDefaults(&cfg.Tokens.Private, "gogo", "Gogo", "GOGO")
	applyTokenDefaults(&cfg.Tokens.Public, "gold", "Gold", "GOLD")

	if pw := os.Getenv(EnvDatabasePassword); pw != "" {
		cfg.Database.Password = pw
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func applyTokenDefaults(t *TokenConfig, id, name, symbol string) {
	if t.ID == "" {
		t.ID = id
	}
	if t.Name == "" {
		t.Name = name
	}
	if t.Symbol == "" {
		t.Symbol = symbol
	}
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

func validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if cfg.Store.Backend == StorePostgres {
		if cfg.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if cfg.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	}
	if cfg.Tokens.Private.ID == cfg.Tokens.Public.ID {
		return fmt.Errorf("tokens.private.id and tokens.public.id must differ")
	}
	for name, t := range map[string]TokenConfig{"private": cfg.Tokens.Private, "public": cfg.Tokens.Public} {
		for role, rate := range t.RoleFees {
			if _, err := strconv.ParseUint(rate, 10, 64); err != nil {
				return fmt.Errorf("tokens.%s.role_fees[%d]: invalid rate %q", name, role, rate)
			}
		}
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
