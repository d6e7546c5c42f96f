package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vigilhq/vigil/internal/biz/domain"
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig

	// Store configuration
	Store StoreConfig

	// Monitor loop configuration
	Monitor MonitorConfig

	// Delivery configuration
	Delivery DeliveryConfig

	// Budget configuration
	Budget BudgetConfig

	// Detector configuration
	Detectors DetectorConfig

	// Email escalation configuration (optional)
	Email EmailConfig

	// Admin API configuration
	API APIConfig

	// Message templates (loaded from YAML)
	Templates *TemplatesConfig

	// Debug mode
	Debug bool
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID       string
	AppSecret   string
	AlertChatID string // Chat that receives alerts
}

// StoreConfig contains storage configuration
type StoreConfig struct {
	DBPath string
}

// MonitorConfig contains monitor loop configuration
type MonitorConfig struct {
	IntervalMinutes        int
	DetectorTimeoutSeconds int
	CooldownMinutes        int
}

// DeliveryConfig contains delivery and resend configuration
type DeliveryConfig struct {
	ResendIntervalMinutes int
	MaxResends            int
	QuietHoursStart       int
	QuietHoursEnd         int
	RetentionDays         int
}

// BudgetConfig contains daily budget configuration
type BudgetConfig struct {
	DailyLimit int
}

// DetectorConfig contains built-in detector configuration
type DetectorConfig struct {
	DiskPaths    []string
	SystemdUnits []string
	ThermalWarnC int
	ThermalCritC int
}

// EmailConfig contains email escalation configuration
type EmailConfig struct {
	ResendAPIKey string
	From         string
	To           string
}

// Enabled reports whether email escalation is configured
func (c *EmailConfig) Enabled() bool {
	return c.ResendAPIKey != "" && c.From != "" && c.To != ""
}

// APIConfig contains admin API configuration
type APIConfig struct {
	Port int
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Database path
	dbPath := os.Getenv("VIGIL_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".vigil", "vigil.db")
	}

	// Disk paths to watch
	diskPaths := splitList(os.Getenv("DISK_PATHS"))
	if len(diskPaths) == 0 {
		diskPaths = []string{"/"}
	}

	// Load message templates from YAML
	templates, _ := LoadTemplatesConfig(os.Getenv("VIGIL_TEMPLATES_PATH"))

	return &Config{
		Feishu: FeishuConfig{
			AppID:       os.Getenv("FEISHU_APP_ID"),
			AppSecret:   os.Getenv("FEISHU_APP_SECRET"),
			AlertChatID: os.Getenv("FEISHU_ALERT_CHAT_ID"),
		},
		Store: StoreConfig{
			DBPath: dbPath,
		},
		Monitor: MonitorConfig{
			IntervalMinutes:        envInt("MONITOR_INTERVAL_MINUTES", 5),
			DetectorTimeoutSeconds: envInt("DETECTOR_TIMEOUT_SECONDS", 10),
			CooldownMinutes:        envInt("COOLDOWN_MINUTES", 60),
		},
		Delivery: DeliveryConfig{
			ResendIntervalMinutes: envInt("RESEND_INTERVAL_MINUTES", 30),
			MaxResends:            envInt("MAX_RESENDS", 5),
			QuietHoursStart:       envInt("QUIET_HOURS_START", 22),
			QuietHoursEnd:         envInt("QUIET_HOURS_END", 7),
			RetentionDays:         envInt("RETENTION_DAYS", 7),
		},
		Budget: BudgetConfig{
			DailyLimit: envInt("DAILY_ALERT_LIMIT", 5),
		},
		Detectors: DetectorConfig{
			DiskPaths:    diskPaths,
			SystemdUnits: splitList(os.Getenv("SYSTEMD_UNITS")),
			ThermalWarnC: envInt("THERMAL_WARN_C", 75),
			ThermalCritC: envInt("THERMAL_CRIT_C", 85),
		},
		Email: EmailConfig{
			ResendAPIKey: os.Getenv("RESEND_API_KEY"),
			From:         os.Getenv("ALERT_EMAIL_FROM"),
			To:           os.Getenv("ALERT_EMAIL_TO"),
		},
		API: APIConfig{
			Port: envInt("API_PORT", 9877),
		},
		Templates: templates,
		Debug:     os.Getenv("DEBUG") == "true",
	}
}

// ToDeliveryPolicy converts to the domain delivery policy
func (c *DeliveryConfig) ToDeliveryPolicy() domain.DeliveryPolicy {
	return domain.DeliveryPolicy{
		ResendInterval: time.Duration(c.ResendIntervalMinutes) * time.Minute,
		MaxResends:     c.MaxResends,
		QuietStart:     c.QuietHoursStart,
		QuietEnd:       c.QuietHoursEnd,
		Retention:      time.Duration(c.RetentionDays) * 24 * time.Hour,
	}
}

// ToBudgetPolicy converts to the domain budget policy
func (c *BudgetConfig) ToBudgetPolicy() domain.BudgetPolicy {
	policy := domain.DefaultBudgetPolicy()
	policy.DailyLimit = c.DailyLimit
	return policy
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	if c.Feishu.AlertChatID == "" {
		return &ConfigError{Field: "FEISHU_ALERT_CHAT_ID", Message: "required"}
	}
	if c.Delivery.QuietHoursStart < 0 || c.Delivery.QuietHoursStart > 23 {
		return &ConfigError{Field: "QUIET_HOURS_START", Message: "must be 0-23"}
	}
	if c.Delivery.QuietHoursEnd < 0 || c.Delivery.QuietHoursEnd > 23 {
		return &ConfigError{Field: "QUIET_HOURS_END", Message: "must be 0-23"}
	}
	if c.Budget.DailyLimit < 0 {
		return &ConfigError{Field: "DAILY_ALERT_LIMIT", Message: "must not be negative"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func envInt(name string, fallback int) int {
	if val := os.Getenv(name); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
