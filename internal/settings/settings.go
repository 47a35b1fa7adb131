// Package settings loads process settings: defaults, an optional deck-bridge.yaml,
// DECK_BRIDGE_* environment variables and command-line flags, in rising precedence.
package settings

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ensigniasec/deck-bridge/internal/validate"
)

const envPrefix = "deck_bridge"

// Surface kinds.
const (
	SurfaceTerminal = "terminal"
	SurfaceVirtual  = "virtual"
)

// Settings configures the process, not the key map.
type Settings struct {
	Name      string `mapstructure:"name" json:"name" validate:"required,excludes=/"`
	Surface   string `mapstructure:"surface" json:"surface" validate:"oneof=terminal virtual"`
	Keys      int    `mapstructure:"keys" json:"keys" validate:"min=1,max=64"`
	Columns   int    `mapstructure:"columns" json:"columns" validate:"min=1,max=16"`
	LogLevel  string `mapstructure:"log_level" json:"log_level" validate:"oneof=trace debug info warn warning error"`
	LogFormat string `mapstructure:"log_format" json:"log_format" validate:"oneof=text json"`
	LogFile   string `mapstructure:"log_file" json:"log_file"`
}

// Defaults returns the built-in settings.
func Defaults() map[string]any {
	return map[string]any{
		"name":       "deck",
		"surface":    SurfaceVirtual,
		"keys":       15,
		"columns":    5,
		"log_level":  "info",
		"log_format": "text",
		"log_file":   "",
	}
}

// flagKeys maps flag names to setting keys. Only flags the command defines are bound.
//
//nolint:gochecknoglobals // read-only table.
var flagKeys = map[string]string{
	"name":       "name",
	"surface":    "surface",
	"keys":       "keys",
	"columns":    "columns",
	"log-level":  "log_level",
	"log-format": "log_format",
	"log-file":   "log_file",
}

// Load resolves settings for cmd. file, when non-empty, names the settings file;
// otherwise deck-bridge.yaml is looked up in the user config directory and the
// working directory, and a missing file is not an error.
func Load(cmd *cobra.Command, file string) (Settings, error) {
	var s Settings
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("deck-bridge")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "deck-bridge"))
		}
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return s, fmt.Errorf("reading settings: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for flag, key := range flagKeys {
			if f := cmd.Flags().Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return s, err
				}
			}
		}
	}

	if err := v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("decoding settings: %w", err)
	}
	s.LogLevel = strings.ToLower(s.LogLevel)
	s.LogFormat = strings.ToLower(s.LogFormat)
	if err := validate.Struct(s); err != nil {
		field, tag, _ := validate.FirstField(err)
		return s, fmt.Errorf("invalid setting %s: failed %q", field, tag)
	}
	return s, nil
}

// ConfigureLogging applies the log level and format to the standard logger and
// sends its output to out. verbose forces debug.
func (s Settings) ConfigureLogging(out io.Writer, verbose bool) error {
	level, err := logrus.ParseLevel(s.LogLevel)
	if err != nil {
		return err
	}
	if verbose {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
	if s.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{})
	}
	logrus.SetOutput(out)
	return nil
}

// LogWriter opens LogFile for appending, or returns io.Discard when it is unset.
// The caller closes the returned closer.
func (s Settings) LogWriter() (io.Writer, io.Closer, error) {
	if s.LogFile == "" {
		return io.Discard, io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(s.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, f, nil
}
