package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Драйверы хранилища
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

type Config struct {
	Env        string            `yaml:"env" env:"ENV" env-default:"local"` // environment
	HTTPServer HTTPServerConfig  `yaml:"http_server"`
	Storage    StorageConfig     `yaml:"storage"`
	JWT        JWTConfig         `yaml:"jwt"`
	Redis      RedisConfig       `yaml:"redis"`
	Admin      AdminConfig       `yaml:"admin"`
	Rules      map[string]string `yaml:"rules"` // переопределение таблицы прав, например cart: "600"
	Migrations MigrationsConfig  `yaml:"migrations"`
}

// HTTPServerConfig структура http сервера
type HTTPServerConfig struct {
	Host        string        `yaml:"host" env:"HOST" env-default:"0.0.0.0"`
	Port        int           `yaml:"port" env:"PORT" env-default:"3000"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// Address адрес, который слушает сервер
func (c HTTPServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig выбор хранилища: JSON-файл или postgres
type StorageConfig struct {
	Driver   string         `yaml:"driver" env:"STORAGE_DRIVER" env-default:"file"`
	Path     string         `yaml:"path" env:"DB_FILE" env-default:"db.json"`
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig структура по работе с БД, нужна только драйверу postgres
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password string `yaml:"-" env:"DB_PASSWORD"`
	Name     string `yaml:"name" env:"DB_NAME" env-default:"shop"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
}

// DSN собирает строку подключения
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// JWTConfig настройка jwt
type JWTConfig struct {
	Secret   string        `yaml:"-" env:"JWT_SECRET" env-required:"true"`
	TokenTTL time.Duration `yaml:"token_ttl" env:"JWT_TOKEN_TTL" env-default:"1h"`
}

// RedisConfig ограничение частоты запросов; пустой URL выключает лимитер
type RedisConfig struct {
	URL    string        `yaml:"url" env:"REDIS_URL"`
	Limit  int           `yaml:"limit" env:"RATE_LIMIT" env-default:"100"`
	Window time.Duration `yaml:"window" env:"RATE_WINDOW" env-default:"1m"`
}

// AdminConfig учетная запись администратора, создается при старте, если ее нет
type AdminConfig struct {
	Name     string `yaml:"name" env:"ADMIN_NAME" env-default:"Administrator"`
	Email    string `yaml:"email" env:"ADMIN_EMAIL"`
	Password string `yaml:"-" env:"ADMIN_PASSWORD"`
}

type MigrationsConfig struct {
	Path string `yaml:"path" env-default:"./migrations"`
}

// MustLoad - если не загружаем - паникуем. Без файла конфигурации читаем только окружение
func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		return MustLoadFromEnv()
	}
	return MustLoadByPath(configPath)
}

func fetchConfigPath() string {
	var path string

	if flag.Lookup("config") == nil {
		flag.StringVar(&path, "config", "", "path to config file")
	}
	if !flag.Parsed() {
		flag.Parse()
	}
	if f := flag.Lookup("config"); f != nil && path == "" {
		path = f.Value.String()
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("can't read config file %s: %v", configPath, err)
	}

	return &cfg
}

func MustLoadFromEnv() *Config {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("can't read config from environment: %v", err)
	}
	return &cfg
}
