package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BearBump/ShipBox/internal/models"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	ShipBox  ShipBoxConfig  `yaml:"shipbox"`
	Shipper  ShipperConfig  `yaml:"shipper"`
	Carriers CarriersConfig `yaml:"carriers"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnString builds a pgx connection string, sslmode defaults to disable.
func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	TrackingUpdatedTopicName string `yaml:"tracking_updated_topic_name"`
	ShipmentCreatedTopicName string `yaml:"shipment_created_topic_name"`
}

func (k KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type ShipBoxConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
	DefaultProvider    string `yaml:"default_provider"`

	CarrierTimeoutSeconds   int `yaml:"carrier_timeout_seconds"`
	RateCacheTTLSeconds     int `yaml:"rate_cache_ttl_seconds"`
	TrackingCacheTTLSeconds int `yaml:"tracking_cache_ttl_seconds"`
	ShipmentLockTTLSeconds  int `yaml:"shipment_lock_ttl_seconds"`

	WorkerPollIntervalSeconds int `yaml:"worker_poll_interval_seconds"`
	WorkerBatchSize           int `yaml:"worker_batch_size"`
	WorkerConcurrency         int `yaml:"worker_concurrency"`
	WorkerLeaseSeconds        int `yaml:"worker_lease_seconds"`
	WorkerRateLimitPerMinute  int `yaml:"worker_rate_limit_per_minute"`
	// Per-provider overrides, keyed by provider name (DHL, EMULATOR, FAKE).
	WorkerProviderRateLimits map[string]int `yaml:"worker_provider_rate_limits"`

	WorkerHTTPAddr string `yaml:"worker_http_addr"`

	// Worker scheduling (optional). Defaults: IN_TRANSIT 30..120 minutes, UNKNOWN 90 minutes,
	// backoff 5/15/30/60 minutes.
	WorkerNextCheckInTransitMinSeconds int `yaml:"worker_next_check_in_transit_min_seconds"`
	WorkerNextCheckInTransitMaxSeconds int `yaml:"worker_next_check_in_transit_max_seconds"`
	WorkerNextCheckUnknownSeconds      int `yaml:"worker_next_check_unknown_seconds"`
	WorkerBackoff1Seconds              int `yaml:"worker_backoff_1_seconds"`
	WorkerBackoff2Seconds              int `yaml:"worker_backoff_2_seconds"`
	WorkerBackoff3Seconds              int `yaml:"worker_backoff_3_seconds"`
	WorkerBackoff4Seconds              int `yaml:"worker_backoff_4_seconds"`
}

// CarrierTimeout is the per-call bound for adapter requests.
func (c ShipBoxConfig) CarrierTimeout() time.Duration {
	return secondsOr(c.CarrierTimeoutSeconds, 15*time.Second)
}

func (c ShipBoxConfig) RateCacheTTL() time.Duration {
	return secondsOr(c.RateCacheTTLSeconds, 5*time.Minute)
}

func (c ShipBoxConfig) TrackingCacheTTL() time.Duration {
	return secondsOr(c.TrackingCacheTTLSeconds, 10*time.Minute)
}

func (c ShipBoxConfig) ShipmentLockTTL() time.Duration {
	return secondsOr(c.ShipmentLockTTLSeconds, 2*time.Minute)
}

// ShipperConfig is the merchant's own address, used as the shipper of every shipment.
type ShipperConfig struct {
	ContactName  string `yaml:"contact_name"`
	Company      string `yaml:"company"`
	Phone        string `yaml:"phone"`
	Email        string `yaml:"email"`
	AddressLine1 string `yaml:"address_line1"`
	AddressLine2 string `yaml:"address_line2"`
	City         string `yaml:"city"`
	State        string `yaml:"state"`
	PostalCode   string `yaml:"postal_code"`
	Country      string `yaml:"country"`
}

func (s ShipperConfig) Address() models.Address {
	return models.Address{
		ContactName:  s.ContactName,
		Company:      s.Company,
		Phone:        s.Phone,
		Email:        s.Email,
		AddressLine1: s.AddressLine1,
		AddressLine2: s.AddressLine2,
		City:         s.City,
		State:        s.State,
		PostalCode:   s.PostalCode,
		Country:      s.Country,
	}
}

type CarriersConfig struct {
	DHL      DHLConfig      `yaml:"dhl"`
	Emulator EmulatorConfig `yaml:"emulator"`
	Fake     FakeConfig     `yaml:"fake"`
}

type DHLConfig struct {
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	APISecret     string `yaml:"api_secret"`
	AccountNumber string `yaml:"account_number"`
}

type EmulatorConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type FakeConfig struct {
	Enabled bool `yaml:"enabled"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	config.ApplyEnv()
	return &config, nil
}

// ApplyEnv overrides secrets and shipper fields from the environment when set.
func (c *Config) ApplyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"DHL_API_KEY", &c.Carriers.DHL.APIKey},
		{"DHL_API_SECRET", &c.Carriers.DHL.APISecret},
		{"DHL_ACCOUNT_NUMBER", &c.Carriers.DHL.AccountNumber},
		{"DHL_BASE_URL", &c.Carriers.DHL.BaseURL},
		{"SHIPPER_CONTACT_NAME", &c.Shipper.ContactName},
		{"SHIPPER_COMPANY", &c.Shipper.Company},
		{"SHIPPER_PHONE", &c.Shipper.Phone},
		{"SHIPPER_EMAIL", &c.Shipper.Email},
		{"SHIPPER_ADDRESS_LINE1", &c.Shipper.AddressLine1},
		{"SHIPPER_ADDRESS_LINE2", &c.Shipper.AddressLine2},
		{"SHIPPER_CITY", &c.Shipper.City},
		{"SHIPPER_STATE", &c.Shipper.State},
		{"SHIPPER_POSTAL_CODE", &c.Shipper.PostalCode},
		{"SHIPPER_COUNTRY", &c.Shipper.Country},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && v != "" {
			*o.dst = v
		}
	}
}

func secondsOr(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Second
}
