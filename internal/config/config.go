package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Database DatabaseConfig  `mapstructure:"database"`
	Redis    RedisConfig     `mapstructure:"redis"`
	JWT      JWTConfig       `mapstructure:"jwt"`
	OAuth    OAuthConfig     `mapstructure:"oauth"`
	Game     GameConfig      `mapstructure:"game"`
	Admin    AdminSeedConfig `mapstructure:"admin"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int    `mapstructure:"expire"` // hours
}

// OAuthConfig carries the Discord application credentials. ClientSecret and
// the JWT secret are expected to arrive via DONUTBET_* environment variables
// rather than the config file.
type OAuthConfig struct {
	ClientID     string `mapstructure:"clientId"`
	ClientSecret string `mapstructure:"clientSecret"`
	RedirectURI  string `mapstructure:"redirectUri"`
	AuthURL      string `mapstructure:"authUrl"`
	TokenURL     string `mapstructure:"tokenUrl"`
	ProfileURL   string `mapstructure:"profileUrl"`
}

type GameConfig struct {
	StartingBalance int64 `mapstructure:"startingBalance"`
	TournamentFee   int64 `mapstructure:"tournamentFee"`
}

type AdminSeedConfig struct {
	DefaultUsername string `mapstructure:"defaultUsername"`
	DefaultPassword string `mapstructure:"defaultPassword"`
}

var GlobalConfig *Config

func LoadConfig(path string) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("DONUTBET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file, %s", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
	GlobalConfig = &cfg
}

func setDefaults() {
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("oauth.authUrl", "https://discord.com/api/oauth2/authorize")
	viper.SetDefault("oauth.tokenUrl", "https://discord.com/api/oauth2/token")
	viper.SetDefault("oauth.profileUrl", "https://discord.com/api/users/@me")
	viper.SetDefault("game.startingBalance", 1000)
	viper.SetDefault("game.tournamentFee", 5000000)
}
