package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for tabchat.
type Config struct {
	Service   ServiceConfig   `json:"service" yaml:"service"`
	Upload    UploadConfig    `json:"upload" yaml:"upload"`
	DevServer DevServerConfig `json:"devserver" yaml:"devserver"`
	TUI       TUIConfig       `json:"tui" yaml:"tui"`
}

// ServiceConfig locates the analytics service.
type ServiceConfig struct {
	BaseURL   string          `json:"base_url" yaml:"base_url"`
	Endpoints EndpointsConfig `json:"endpoints" yaml:"endpoints"`
}

// EndpointsConfig holds the service paths, relative to BaseURL.
type EndpointsConfig struct {
	StartSession string `json:"start_session" yaml:"start_session"`
	UploadCSV    string `json:"upload_csv" yaml:"upload_csv"`
	Query        string `json:"query" yaml:"query"`
	EndSession   string `json:"end_session" yaml:"end_session"`
}

// UploadConfig configures file validation and encoding.
type UploadConfig struct {
	Extension string `json:"extension" yaml:"extension"` // allowed extension, without dot
	Field     string `json:"field" yaml:"field"`         // multipart field name
}

// DevServerConfig configures the local stand-in service.
type DevServerConfig struct {
	Host           string   `json:"host" yaml:"host"`
	Port           int      `json:"port" yaml:"port"`
	SessionTimeout Duration `json:"session_timeout" yaml:"session_timeout"`
	MaxTables      int      `json:"max_tables" yaml:"max_tables"`
	SweepSchedule  string   `json:"sweep_schedule" yaml:"sweep_schedule"` // cron spec, e.g. "@every 1m"
}

// TUIConfig configures the interactive client.
type TUIConfig struct {
	LogFile string `json:"log_file" yaml:"log_file"` // default: $TABCHAT_PATH/tabchat.log
}

// Duration wraps time.Duration for JSON and YAML unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return d.parse(s)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
