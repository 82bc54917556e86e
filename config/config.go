package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full service configuration, layered from defaults, an
// optional YAML file and CHAT_-prefixed environment variables.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Hub       HubConfig       `mapstructure:"hub"`
	Sequencer SequencerConfig `mapstructure:"sequencer"`
	Spam      SpamConfig      `mapstructure:"spam"`
	Profanity ProfanityConfig `mapstructure:"profanity"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	WebRTC    WebRTCConfig    `mapstructure:"webrtc"`
	Uploads   UploadsConfig   `mapstructure:"uploads"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Format is text or json.
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is sqlite or postgres.
	Driver string `mapstructure:"driver"`
	// Path is the sqlite file, ignored for postgres.
	Path string `mapstructure:"path"`
	// DSN is the postgres connection string.
	DSN string `mapstructure:"dsn"`
}

type HubConfig struct {
	// FlushDelay is the update batching window per session.
	FlushDelay time.Duration `mapstructure:"flush_delay"`
	// SendBuffer bounds the per-session outbound frame queue; overflow
	// closes the session.
	SendBuffer int `mapstructure:"send_buffer"`
	// SignatureWindow bounds the per-session dedup window. Values below
	// 100 are raised to 100.
	SignatureWindow int `mapstructure:"signature_window"`
	// SendTimeout bounds a blocking direct send before it counts as
	// backpressure.
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

type SequencerConfig struct {
	// Retention bounds update_log history. Values below 24h are raised
	// to 24h.
	Retention     time.Duration `mapstructure:"retention"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

type SpamConfig struct {
	BurstWindow         time.Duration `mapstructure:"burst_window"`
	BurstCount          int           `mapstructure:"burst_count"`
	SpamWindow          time.Duration `mapstructure:"spam_window"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"`
	SpamLimit           int           `mapstructure:"spam_limit"`
	ShortLength         int           `mapstructure:"short_length"`
	ShortRepeat         int           `mapstructure:"short_repeat"`
}

type ProfanityConfig struct {
	// BlocklistPath is the JSON blocklist file; created on first write
	// when absent.
	BlocklistPath string `mapstructure:"blocklist_path"`
	// Watch reloads the blocklist when the file changes on disk.
	Watch bool `mapstructure:"watch"`
}

type AuthConfig struct {
	// JWTSecret signs access tokens. Required outside tests.
	JWTSecret string `mapstructure:"jwt_secret"`
	// TokenTTL is the hard token expiry.
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	// InactivityWindow revokes device sessions unseen for this long.
	InactivityWindow time.Duration `mapstructure:"inactivity_window"`
	// OwnerUsername names the bootstrap owner account.
	OwnerUsername string `mapstructure:"owner_username"`
}

type AuditConfig struct {
	Dir        string `mapstructure:"dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type NotifyConfig struct {
	// AMQPURL enables the AMQP push bridge when set; empty keeps the
	// log-only sink.
	AMQPURL  string `mapstructure:"amqp_url"`
	Exchange string `mapstructure:"exchange"`
}

type WebRTCConfig struct {
	ICEServers []string `mapstructure:"ice_servers"`
}

type UploadsConfig struct {
	// Dir holds files/normal and files/encrypted.
	Dir string `mapstructure:"dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/chat.db")

	v.SetDefault("hub.flush_delay", 75*time.Millisecond)
	v.SetDefault("hub.send_buffer", 256)
	v.SetDefault("hub.signature_window", 256)
	v.SetDefault("hub.send_timeout", 500*time.Millisecond)

	v.SetDefault("sequencer.retention", 72*time.Hour)
	v.SetDefault("sequencer.prune_interval", time.Hour)

	v.SetDefault("spam.burst_window", 30*time.Second)
	v.SetDefault("spam.burst_count", 20)
	v.SetDefault("spam.spam_window", 45*time.Second)
	v.SetDefault("spam.similarity_threshold", 0.88)
	v.SetDefault("spam.spam_limit", 5)
	v.SetDefault("spam.short_length", 8)
	v.SetDefault("spam.short_repeat", 4)

	v.SetDefault("profanity.blocklist_path", "data/blocklist.json")
	v.SetDefault("profanity.watch", true)

	v.SetDefault("auth.token_ttl", 365*24*time.Hour)
	v.SetDefault("auth.inactivity_window", 30*24*time.Hour)
	v.SetDefault("auth.owner_username", "owner")

	v.SetDefault("audit.dir", "logs")
	v.SetDefault("audit.max_size_mb", 5)
	v.SetDefault("audit.max_backups", 5)

	v.SetDefault("notify.exchange", "chat.push")

	v.SetDefault("webrtc.ice_servers", []string{
		"stun:stun.l.google.com:19302",
		"stun:stun1.l.google.com:19302",
	})

	v.SetDefault("uploads.dir", "uploads")
}

// LoadConfig builds the configuration. Flags are parsed from os.Args with
// unknown flags ignored, so the cli layer can carry its own.
func LoadConfig() (*Config, error) {
	fs := pflag.NewFlagSet("chat-core-service", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.String("config_file", "", "path to the YAML config file")
	fs.String("server.addr", ":8080", "HTTP listen address")
	fs.String("database.path", "data/chat.db", "sqlite database file")
	fs.String("auth.jwt_secret", "", "token signing secret")
	fs.String("log.level", "info", "log level (debug, info, warn, error)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Bounds applied once at startup; they implement the documented floors.

// EffectiveSignatureWindow returns the dedup window with its floor.
func (c HubConfig) EffectiveSignatureWindow() int {
	if c.SignatureWindow < 100 {
		return 100
	}
	return c.SignatureWindow
}

// EffectiveRetention returns the update_log retention with its floor.
func (c SequencerConfig) EffectiveRetention() time.Duration {
	if c.Retention < 24*time.Hour {
		return 24 * time.Hour
	}
	return c.Retention
}
