package extchannel

import (
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// DefaultConfigPath is where the server looks for its configuration
const DefaultConfigPath = "config/extchannel.yml"

// FloodConfig holds the anti flood thresholds per second
type FloodConfig struct {
	Enabled          bool `yaml:"enabled"`
	PacketThreshold  int  `yaml:"packet_threshold"`
	MessageThreshold int  `yaml:"message_threshold"`
}

// SyncConfig holds the sync check settings
type SyncConfig struct {
	BufferSize int `yaml:"buffer_size"`

	// RequestInterval is the number of ticks between sync requests
	RequestInterval int `yaml:"request_interval"`

	// Policy is one of "warn", "pause" or "kick"
	Policy    string `yaml:"policy"`
	KickAfter int    `yaml:"kick_after"`
}

// A Config is the typed form of the configuration file
type Config struct {
	Host           string `yaml:"host"`
	PlayerLimit    int    `yaml:"player_limit"`
	TickRate       int    `yaml:"tick_rate"`
	MaxMsgsPerTick int    `yaml:"max_msgs_per_tick"`
	Level          string `yaml:"level"`
	MaskGUIDs      bool   `yaml:"mask_guids"`
	Debug          bool   `yaml:"debug"`

	// AdminPassword may be removed once the server
	// stored the verifier derived from it
	AdminPassword string `yaml:"admin_password"`

	StatusListen string `yaml:"status_listen"`
	DesyncLogDir string `yaml:"desync_log_dir"`
	StorageDir   string `yaml:"storage_dir"`
	LogDir       string `yaml:"log_dir"`

	AntiFlood FloodConfig `yaml:"anti_flood"`
	SyncCheck SyncConfig  `yaml:"sync_check"`
}

// DefaultConfig returns the settings used for missing keys
func DefaultConfig() *Config {
	return &Config{
		Host:           "0.0.0.0:25600",
		PlayerLimit:    16,
		TickRate:       20,
		MaxMsgsPerTick: 256,
		Level:          `LEVELS\DEFAULT.WLD`,
		MaskGUIDs:      true,
		StorageDir:     "storage",
		LogDir:         "log",
		DesyncLogDir:   "log/desync",
		AntiFlood: FloodConfig{
			Enabled:          true,
			PacketThreshold:  60,
			MessageThreshold: 8,
		},
		SyncCheck: SyncConfig{
			BufferSize:      64,
			RequestInterval: 20,
			Policy:          "kick",
			KickAfter:       3,
		},
	}
}

// SyncPolicy returns the policy selected by the configuration
func (c *Config) SyncPolicy() SyncPolicy {
	switch strings.ToLower(c.SyncCheck.Policy) {
	case "pause":
		return SyncPolicy{PauseOnMismatch: true}
	case "kick":
		return SyncPolicy{KickAfter: c.SyncCheck.KickAfter}
	}
	return SyncPolicy{}
}

// Flood returns the AntiFlood guard selected by the configuration
func (c *Config) Flood() AntiFlood {
	return AntiFlood{
		Enabled:          c.AntiFlood.Enabled,
		PacketThreshold:  c.AntiFlood.PacketThreshold,
		MessageThreshold: c.AntiFlood.MessageThreshold,
	}
}

var rawConfig map[interface{}]interface{}

// ParseConfig decodes a configuration file on top of the defaults
func ParseConfig(data []byte) (*Config, error) {
	c := DefaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}

	raw := make(map[interface{}]interface{})
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	rawConfig = raw

	return c, nil
}

// LoadConfig loads the configuration file at path
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseConfig(data)
}

// ConfKey returns a key in the configuration,
// nested keys are separated by colons
func ConfKey(key string) interface{} {
	keys := strings.Split(key, ":")
	c := rawConfig
	for i := 0; i < len(keys)-1; i++ {
		next, ok := c[keys[i]].(map[interface{}]interface{})
		if !ok {
			return nil
		}
		c = next
	}

	return c[keys[len(keys)-1]]
}
