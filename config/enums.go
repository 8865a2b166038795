package config

import "fmt"

// LogLevel is the minimum severity the logger emits. Values are
// case-sensitive.
type LogLevel string

const (
	LevelDebug    LogLevel = "DEBUG"
	LevelInfo     LogLevel = "INFO"
	LevelWarning  LogLevel = "WARNING"
	LevelError    LogLevel = "ERROR"
	LevelCritical LogLevel = "CRITICAL"
)

// UnmarshalText implements encoding.TextUnmarshaler so env parsing rejects
// values outside the allowed set.
func (l *LogLevel) UnmarshalText(text []byte) error {
	switch v := LogLevel(text); v {
	case LevelDebug, LevelInfo, LevelWarning, LevelError, LevelCritical:
		*l = v
		return nil
	default:
		return fmt.Errorf("invalid log level %q: must be one of DEBUG, INFO, WARNING, ERROR, CRITICAL", text)
	}
}

func (l LogLevel) String() string {
	return string(l)
}

// LogFormat selects the logger's output encoding.
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *LogFormat) UnmarshalText(text []byte) error {
	switch v := LogFormat(text); v {
	case FormatJSON, FormatText:
		*f = v
		return nil
	default:
		return fmt.Errorf("invalid log format %q: must be one of json, text", text)
	}
}

func (f LogFormat) String() string {
	return string(f)
}

// Environment names the deployment stage the process runs in.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Environment) UnmarshalText(text []byte) error {
	switch v := Environment(text); v {
	case EnvDevelopment, EnvStaging, EnvProduction:
		*e = v
		return nil
	default:
		return fmt.Errorf("invalid environment %q: must be one of development, staging, production", text)
	}
}

func (e Environment) String() string {
	return string(e)
}
