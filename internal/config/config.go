package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	LogLevel   string        `mapstructure:"log_level"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	AdminToken string        `mapstructure:"admin_token"`
	InstanceID string        `mapstructure:"instance_id"`

	Rooms      RoomsConfig      `mapstructure:"rooms"`
	Messages   MessagesConfig   `mapstructure:"messages"`
	Relay      RelayConfig      `mapstructure:"relay"`
	Federation FederationConfig `mapstructure:"federation"`
	Snapshot   SnapshotConfig   `mapstructure:"snapshot"`
	WebRTC     WebRTCConfig     `mapstructure:"webrtc"`
}

type DefaultRoom struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	MaxUsers    int    `mapstructure:"max_users"`
}

type RoomsConfig struct {
	DefaultMaxUsers  int           `mapstructure:"default_max_users"`
	AuthMaxUsers     int           `mapstructure:"auth_max_users"`
	GuestMaxUsers    int           `mapstructure:"guest_max_users"`
	GuestMinDuration time.Duration `mapstructure:"guest_min_duration"`
	GuestMaxDuration time.Duration `mapstructure:"guest_max_duration"`
	EmptyTTL         time.Duration `mapstructure:"empty_ttl"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	CreateLimit      int           `mapstructure:"create_limit"`
	CreateWindow     time.Duration `mapstructure:"create_window"`
	BcryptCost       int           `mapstructure:"bcrypt_cost"`
	Defaults         []DefaultRoom `mapstructure:"defaults"`
}

type MessagesConfig struct {
	MaxPerConversation int           `mapstructure:"max_per_conversation"`
	GuestRetention     time.Duration `mapstructure:"guest_retention"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
	DefaultPage        int           `mapstructure:"default_page"`
	MaxPage            int           `mapstructure:"max_page"`
	MaxTextLen         int           `mapstructure:"max_text_len"`
}

type RelayConfig struct {
	// SlowConsumer is "drop" or "kick".
	SlowConsumer string `mapstructure:"slow_consumer"`
}

type FederationConfig struct {
	AMQPURL         string        `mapstructure:"amqp_url"`
	Exchange        string        `mapstructure:"exchange"`
	Peers           []string      `mapstructure:"peers"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	NotifyTimeout   time.Duration `mapstructure:"notify_timeout"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

type SnapshotConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Key           string        `mapstructure:"key"`
	Interval      time.Duration `mapstructure:"interval"`
	TTL           time.Duration `mapstructure:"ttl"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type WebRTCConfig struct {
	ICEServers []ICEServer `mapstructure:"ice_servers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 256)
	v.SetDefault("secret", "change-me")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("admin_token", "")
	v.SetDefault("instance_id", "local")

	v.SetDefault("rooms.default_max_users", 10)
	v.SetDefault("rooms.auth_max_users", 50)
	v.SetDefault("rooms.guest_max_users", 5)
	v.SetDefault("rooms.guest_min_duration", "10m")
	v.SetDefault("rooms.guest_max_duration", "30m")
	v.SetDefault("rooms.empty_ttl", "30s")
	v.SetDefault("rooms.sweep_interval", "1m")
	v.SetDefault("rooms.create_limit", 5)
	v.SetDefault("rooms.create_window", "1m")
	v.SetDefault("rooms.bcrypt_cost", 10)
	v.SetDefault("rooms.defaults", []map[string]any{})

	v.SetDefault("messages.max_per_conversation", 500)
	v.SetDefault("messages.guest_retention", "24h")
	v.SetDefault("messages.sweep_interval", "1h")
	v.SetDefault("messages.default_page", 50)
	v.SetDefault("messages.max_page", 200)
	v.SetDefault("messages.max_text_len", 2000)

	v.SetDefault("relay.slow_consumer", "drop")

	v.SetDefault("federation.amqp_url", "")
	v.SetDefault("federation.exchange", "voicerooms.federation")
	v.SetDefault("federation.peers", []string{})
	v.SetDefault("federation.fetch_timeout", "5s")
	v.SetDefault("federation.notify_timeout", "5s")
	v.SetDefault("federation.refresh_interval", "30s")

	v.SetDefault("snapshot.redis_addr", "")
	v.SetDefault("snapshot.redis_password", "")
	v.SetDefault("snapshot.redis_db", 0)
	v.SetDefault("snapshot.key", "voicerooms:snapshot")
	v.SetDefault("snapshot.interval", "30s")
	v.SetDefault("snapshot.ttl", "72h")

	v.SetDefault("webrtc.ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
}

// Load reads .env, then config/config.<CONFIG_ENV>.yaml, then VOICE_*
// environment overrides (dots become underscores, e.g. VOICE_ROOMS_EMPTY_TTL).
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.SetEnvPrefix("VOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Rooms.GuestMinDuration > c.Rooms.GuestMaxDuration {
		return fmt.Errorf("rooms.guest_min_duration %s exceeds rooms.guest_max_duration %s",
			c.Rooms.GuestMinDuration, c.Rooms.GuestMaxDuration)
	}
	switch c.Relay.SlowConsumer {
	case "drop", "kick":
	default:
		return fmt.Errorf("relay.slow_consumer must be drop or kick, got %q", c.Relay.SlowConsumer)
	}
	return nil
}
