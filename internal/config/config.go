package config

import "time"

// Store backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendS3     = "s3"
)

// Default store keys.
const (
	DefaultImageKey   = "brainbox.sqlite"
	DefaultSessionKey = "brainbox.session"
)

// Config holds runtime settings for the local data layer and the CLI.
//
// Fields:
//   - DataDir: directory used by the file backend.
//   - StoreBackend: which host byte store holds the image and session slot.
//   - ImageKey / SessionKey: fixed keys of the database image and session record.
//   - SecretKey: HMAC secret for session tokens; empty means a random secret
//     generated once and kept in the store.
//   - SessionValidity: lifetime of issued session tokens.
//   - S3*: settings for the S3-compatible backend.
type Config struct {
	DataDir         string
	StoreBackend    string
	ImageKey        string
	SessionKey      string
	SecretKey       string
	SessionValidity time.Duration
	S3Bucket        string
	S3Region        string
	S3BaseEndpoint  string
	S3AccessKey     string
	S3SecretKey     string
	LogLevel        string
	LogFormat       string
}

// LoadDefaults populates c with defaults suitable for a single local user.
func (c *Config) LoadDefaults() {
	c.DataDir = "brainbox-data"
	c.StoreBackend = BackendFile
	c.ImageKey = DefaultImageKey
	c.SessionKey = DefaultSessionKey
	c.SecretKey = ""
	c.SessionValidity = 7 * 24 * time.Hour
	c.S3Bucket = "brainbox"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// LoadConfig constructs a Config from defaults, then the JSON file (if any),
// then command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
