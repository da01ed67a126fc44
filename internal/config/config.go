// Package config loads the slotkeeper service configuration from an
// optional YAML file, SLOTKEEPER_* environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/teemow/slotkeeper/internal/calendar"
	"github.com/teemow/slotkeeper/internal/connector"
	"github.com/teemow/slotkeeper/internal/events"
	"github.com/teemow/slotkeeper/internal/google"
	"github.com/teemow/slotkeeper/internal/registry"
	"github.com/teemow/slotkeeper/internal/retry"
	"github.com/teemow/slotkeeper/internal/schedule"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// SLOTKEEPER_REGISTRY_CAPACITY.
const EnvPrefix = "SLOTKEEPER"

// Config is the service configuration.
type Config struct {
	Registry    RegistryConfig               `mapstructure:"registry"`
	Cache       CacheConfig                  `mapstructure:"cache"`
	Connector   ConnectorConfig              `mapstructure:"connector"`
	Retry       RetryConfig                  `mapstructure:"retry"`
	Calendar    CalendarConfig               `mapstructure:"calendar"`
	Credentials CredentialsConfig            `mapstructure:"credentials"`
	Events      EventsConfig                 `mapstructure:"events"`
	Defaults    schedule.BusinessHoursConfig `mapstructure:"defaults"`

	// Tenants are registered at startup. Each tenant's hours start from
	// Defaults.
	Tenants []Tenant `mapstructure:"-"`
}

type RegistryConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type CacheConfig struct {
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

type ConnectorConfig struct {
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

type RetryConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

type CalendarConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

type CredentialsConfig struct {
	// Dir holds one <tenant>.json file per tenant.
	Dir string `mapstructure:"dir"`
}

type EventsConfig struct {
	// AMQPURL enables RabbitMQ publishing when set.
	AMQPURL  string `mapstructure:"amqp_url"`
	Exchange string `mapstructure:"exchange"`
	Buffer   int    `mapstructure:"buffer"`
}

// Tenant is a tenant registered at startup.
type Tenant struct {
	ID    string
	Hours schedule.BusinessHoursConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("registry.capacity", registry.DefaultCapacity)
	v.SetDefault("cache.stale_after", connector.DefaultStaleAfter)
	v.SetDefault("connector.call_timeout", connector.DefaultCallTimeout)
	v.SetDefault("retry.max_retries", retry.DefaultMaxRetries)
	v.SetDefault("retry.initial_delay", retry.DefaultInitialDelay)
	v.SetDefault("retry.max_delay", retry.DefaultMaxDelay)
	v.SetDefault("calendar.requests_per_minute", calendar.DefaultRequestsPerMinute)
	v.SetDefault("credentials.dir", google.DefaultCredentialsDir())
	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.exchange", events.DefaultExchange)
	v.SetDefault("events.buffer", events.DefaultBuffer)

	for key, value := range hoursSettings(schedule.DefaultBusinessHours()) {
		v.SetDefault("defaults."+key, value)
	}
}

// hoursSettings flattens business hours into viper keys.
func hoursSettings(h schedule.BusinessHoursConfig) map[string]interface{} {
	return map[string]interface{}{
		"calendar_id":                 h.CalendarID,
		"start":                       h.Start,
		"end":                         h.End,
		"work_days":                   h.WorkDays,
		"slot_duration_minutes":       h.SlotDurationMinutes,
		"buffer_minutes":              h.BufferMinutes,
		"min_advance_booking_minutes": h.MinAdvanceBookingMinutes,
		"look_ahead_days":             h.LookAheadDays,
		"max_slots_per_day":           h.MaxSlotsPerDay,
		"timezone":                    h.Timezone,
		"services":                    h.Services,
	}
}

// Load reads configuration from path (optional) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	tenants, err := loadTenants(v.Get("tenants"), cfg.Defaults)
	if err != nil {
		return nil, err
	}
	cfg.Tenants = tenants

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadTenants decodes the tenants list, layering each tenant's hours over
// the defaults.
func loadTenants(raw interface{}, defaults schedule.BusinessHoursConfig) ([]Tenant, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, errors.New("tenants must be a list")
	}

	tenants := make([]Tenant, 0, len(list))
	for i, item := range list {
		m, ok := toStringMap(item)
		if !ok {
			return nil, fmt.Errorf("tenants[%d] must be a mapping", i)
		}
		id, _ := m["id"].(string)

		sub := viper.New()
		for key, value := range hoursSettings(defaults) {
			sub.SetDefault(key, value)
		}
		if hours, ok := toStringMap(m["hours"]); ok {
			if err := sub.MergeConfigMap(hours); err != nil {
				return nil, fmt.Errorf("tenants[%d]: %w", i, err)
			}
		}

		var h schedule.BusinessHoursConfig
		if err := sub.Unmarshal(&h); err != nil {
			return nil, fmt.Errorf("failed to decode hours of tenant %q: %w", id, err)
		}
		tenants = append(tenants, Tenant{ID: id, Hours: h})
	}
	return tenants, nil
}

func toStringMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if c.Registry.Capacity <= 0 {
		return errors.New("registry.capacity must be positive")
	}
	if c.Cache.StaleAfter <= 0 {
		return errors.New("cache.stale_after must be positive")
	}
	if c.Connector.CallTimeout <= 0 {
		return errors.New("connector.call_timeout must be positive")
	}
	if c.Retry.MaxRetries < 0 {
		return errors.New("retry.max_retries must not be negative")
	}
	if c.Retry.InitialDelay <= 0 || c.Retry.MaxDelay < c.Retry.InitialDelay {
		return errors.New("retry delays must be positive with max_delay >= initial_delay")
	}
	if c.Calendar.RequestsPerMinute <= 0 {
		return errors.New("calendar.requests_per_minute must be positive")
	}
	if err := c.Defaults.WithDefaults().Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}

	if len(c.Tenants) > c.Registry.Capacity {
		return fmt.Errorf("%d tenants configured but registry.capacity is %d", len(c.Tenants), c.Registry.Capacity)
	}

	seen := make(map[string]bool, len(c.Tenants))
	for _, t := range c.Tenants {
		if err := google.ValidateTenantID(t.ID); err != nil {
			return fmt.Errorf("tenant %q: %w", t.ID, err)
		}
		if seen[t.ID] {
			return fmt.Errorf("tenant %q is listed twice", t.ID)
		}
		seen[t.ID] = true
		if err := t.Hours.WithDefaults().Validate(); err != nil {
			return fmt.Errorf("tenant %q: %w", t.ID, err)
		}
	}
	return nil
}

// RetryPolicy returns the configured retry policy.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:   c.Retry.MaxRetries,
		InitialDelay: c.Retry.InitialDelay,
		MaxDelay:     c.Retry.MaxDelay,
	}
}
