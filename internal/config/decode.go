package config

import (
	"github.com/spf13/pflag"
)

// DecodeConfig holds configuration for the offline decode command.
type DecodeConfig struct {
	In           string
	Out          string
	Errors       string
	FallbackType string
	LogLevel     string
}

// LoadDecode merges config file, environment variables, and flags into DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return DecodeConfig{}, err
	}

	v.SetDefault("out", "./data/events.jsonl")
	v.SetDefault("errors", "./data/decode_errors.jsonl")
	v.SetDefault("fallback-type", "friends")

	cfg := DecodeConfig{
		In:           v.GetString("in"),
		Out:          v.GetString("out"),
		Errors:       v.GetString("errors"),
		FallbackType: v.GetString("fallback-type"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}
