package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vigilhq/vigil/internal/biz/domain"
)

// TemplatesConfig contains all message templates loaded from YAML
type TemplatesConfig struct {
	Alert       AlertTemplates    `yaml:"alert"`
	Decorations DecorationConfig  `yaml:"decorations"`
	Categories  map[string]string `yaml:"categories"`
}

// AlertTemplates contains outbound message templates
type AlertTemplates struct {
	Body         string `yaml:"body"`
	ResendPrefix string `yaml:"resend_prefix"`
	EmailSubject string `yaml:"email_subject"`
}

// DecorationConfig contains priority decorations prepended to titles
type DecorationConfig struct {
	Urgent string `yaml:"urgent"`
	High   string `yaml:"high"`
}

// LoadTemplatesConfig loads message templates from YAML file
func LoadTemplatesConfig(configPath string) (*TemplatesConfig, error) {
	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/templates.yaml",
			"./configs/templates.yaml",
			"/etc/vigil/templates.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "templates.yaml"))
		}
		// Add path relative to working directory
		if wd, err := os.Getwd(); err == nil {
			paths = append(paths, filepath.Join(wd, "configs", "templates.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	var err error

	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			loadedPath = p
			break
		}
	}

	if data == nil {
		// Return default config if no file found
		return DefaultTemplatesConfig(), nil
	}

	fmt.Printf("[Config] Loading templates from: %s\n", loadedPath)

	var config TemplatesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse templates.yaml: %w", err)
	}

	// Fill in defaults for empty values
	config.fillDefaults()

	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *TemplatesConfig) fillDefaults() {
	defaults := DefaultTemplatesConfig()

	if c.Alert.Body == "" {
		c.Alert.Body = defaults.Alert.Body
	}
	if c.Alert.ResendPrefix == "" {
		c.Alert.ResendPrefix = defaults.Alert.ResendPrefix
	}
	if c.Alert.EmailSubject == "" {
		c.Alert.EmailSubject = defaults.Alert.EmailSubject
	}

	if c.Decorations.Urgent == "" {
		c.Decorations.Urgent = defaults.Decorations.Urgent
	}
	if c.Decorations.High == "" {
		c.Decorations.High = defaults.Decorations.High
	}

	if c.Categories == nil {
		c.Categories = map[string]string{}
	}
	for key, label := range defaults.Categories {
		if c.Categories[key] == "" {
			c.Categories[key] = label
		}
	}
}

// FormatAlert renders the outbound body for an alert
func (c *TemplatesConfig) FormatAlert(alert *domain.PendingAlert) string {
	result := c.Alert.Body
	result = strings.ReplaceAll(result, "{{decoration}}", c.decorationFor(alert.Priority))
	result = strings.ReplaceAll(result, "{{title}}", alert.Title)
	result = strings.ReplaceAll(result, "{{message}}", alert.Message)
	result = strings.ReplaceAll(result, "{{category}}", c.CategoryLabel(alert.Category))
	return strings.TrimSpace(result)
}

// FormatResend renders a resend body with the attempt counter prefix
func (c *TemplatesConfig) FormatResend(alert *domain.PendingAlert, maxResends int) string {
	prefix := c.Alert.ResendPrefix
	prefix = strings.ReplaceAll(prefix, "{{attempt}}", strconv.Itoa(alert.SendCount+1))
	prefix = strings.ReplaceAll(prefix, "{{max}}", strconv.Itoa(maxResends))
	return prefix + c.FormatAlert(alert)
}

// FormatEmailSubject renders the escalation email subject
func (c *TemplatesConfig) FormatEmailSubject(alert *domain.PendingAlert) string {
	result := c.Alert.EmailSubject
	result = strings.ReplaceAll(result, "{{title}}", alert.Title)
	result = strings.ReplaceAll(result, "{{category}}", c.CategoryLabel(alert.Category))
	return result
}

// CategoryLabel returns the display label for a category
func (c *TemplatesConfig) CategoryLabel(category string) string {
	if label, ok := c.Categories[category]; ok {
		return label
	}
	return category
}

func (c *TemplatesConfig) decorationFor(priority domain.Priority) string {
	switch priority {
	case domain.PriorityUrgent:
		return c.Decorations.Urgent
	case domain.PriorityHigh:
		return c.Decorations.High
	}
	return ""
}

// DefaultTemplatesConfig returns the default message templates
func DefaultTemplatesConfig() *TemplatesConfig {
	return &TemplatesConfig{
		Alert: AlertTemplates{
			Body:         "{{decoration}}{{title}}\n{{message}}",
			ResendPrefix: "🔔 Reminder ({{attempt}}/{{max}})\n",
			EmailSubject: "[URGENT] {{title}}",
		},
		Decorations: DecorationConfig{
			Urgent: "🚨 ",
			High:   "⚠️ ",
		},
		Categories: map[string]string{
			"health":   "Health",
			"calendar": "Calendar",
			"task":     "Tasks",
			"reminder": "Reminders",
			"weather":  "Weather",
			"infra":    "Infrastructure",
		},
	}
}
