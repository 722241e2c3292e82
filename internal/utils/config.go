package utils

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirkon/errors"
	"gopkg.in/yaml.v3"
)

// Persistence modes
const (
	PersistenceWriteThrough = "writethroughdisk"
	PersistenceBuffered     = "bufferedwrite"
	PersistenceNone         = "none"
)

const (
	defaultPort       = 6379
	grpcPortOffset    = 1000
	defaultConfigDir  = ".linkd"
	defaultConfigName = "linkd.yaml"
	defaultBinlogName = "binlog.dat"
	defaultLogName    = "linkd.log"
)

// Config struct holds application configuration
type Config struct {
	Port            int      `yaml:"port"`
	HTTPPort        int      `yaml:"http_port"`
	GRPCPort        int      `yaml:"grpc_port"`
	Persistence     string   `yaml:"persistence"`
	PersistencePath string   `yaml:"persistence_path"`
	LogFile         string   `yaml:"log_file"`
	Debug           bool     `yaml:"debug"`
	NodeID          int      `yaml:"node_id"`
	IsLeader        bool     `yaml:"leader"`
	LeaderAddress   string   `yaml:"leader_address"`
	Followers       []string `yaml:"followers"`
}

// DefaultConfigPath returns ~/.linkd/linkd.yaml
func DefaultConfigPath() string {
	return filepath.Join(homeDir(), defaultConfigDir, defaultConfigName)
}

// LoadConfig reads the YAML config at filename. A missing file yields the
// default configuration.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			config := &Config{}
			applyDefaults(config)
			return config, nil
		}
		return nil, errors.Wrap(err, "read config file").Str("path", filename)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse config file").Str("path", filename)
	}
	return config, nil
}

// ParseConfig decodes YAML data and fills in missing values.
func ParseConfig(data []byte) (*Config, error) {
	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	applyDefaults(config)
	return config, nil
}

// GRPCAddress returns the listen address of the replication service.
func (c *Config) GRPCAddress() string {
	return ":" + strconv.Itoa(c.GRPCPort)
}

// SetPort changes the client port. A gRPC port derived from the old client
// port moves along, one set explicitly stays.
func (c *Config) SetPort(port int) {
	if c.GRPCPort == c.Port+grpcPortOffset {
		c.GRPCPort = port + grpcPortOffset
	}
	c.Port = port
}

// IsFollower checks if this node replicates from a leader.
func (c *Config) IsFollower() bool {
	return !c.IsLeader && c.LeaderAddress != ""
}

// applyDefaults ensures missing values get defaults
func applyDefaults(config *Config) {
	if config.Port == 0 {
		config.Port = defaultPort
	}
	if config.GRPCPort == 0 {
		config.GRPCPort = config.Port + grpcPortOffset
	}
	switch config.Persistence {
	case PersistenceWriteThrough, PersistenceBuffered, PersistenceNone:
	default:
		config.Persistence = PersistenceWriteThrough
	}
	if config.PersistencePath == "" {
		config.PersistencePath = filepath.Join(homeDir(), defaultConfigDir, defaultBinlogName)
	}
}

func homeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return dir
}
