package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DecodeConfig holds configuration for the decode command.
type DecodeConfig struct {
	In        string
	Out       string
	Errors    string
	LogLevel  string
	Topic0Map map[string]string
}

// LoadDecode merges config file, environment variables, and flags into DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":       "./data/typed_events.jsonl",
		"errors":    "./data/decode_errors.jsonl",
		"log-level": "info",
	})
	if err != nil {
		return DecodeConfig{}, err
	}

	topic0Map, err := getTopic0Map(v, "topic0-map")
	if err != nil {
		return DecodeConfig{}, err
	}

	cfg := DecodeConfig{
		In:        v.GetString("in"),
		Out:       v.GetString("out"),
		Errors:    v.GetString("errors"),
		LogLevel:  v.GetString("log-level"),
		Topic0Map: topic0Map,
	}

	return cfg, nil
}

// getTopic0Map reads topic0=EventName pairs from a map or a
// comma-separated string. Topics are lower-cased and must be 32-byte hex.
func getTopic0Map(v *viper.Viper, key string) (map[string]string, error) {
	raw := map[string]string{}
	switch typed := v.Get(key).(type) {
	case nil:
	case map[string]string:
		raw = typed
	case map[string]interface{}:
		for k, val := range typed {
			raw[k] = fmt.Sprintf("%v", val)
		}
	case string:
		parsed, err := parseStringMap(typed)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		raw = parsed
	default:
		return nil, fmt.Errorf("%s: unsupported value %T", key, typed)
	}

	out := make(map[string]string, len(raw))
	for topic, name := range raw {
		topic = strings.ToLower(strings.TrimSpace(topic))
		name = strings.TrimSpace(name)
		if !topic0Pattern.MatchString(topic) {
			return nil, fmt.Errorf("%s: invalid topic0 %q", key, topic)
		}
		if name == "" {
			return nil, fmt.Errorf("%s: empty event name for %s", key, topic)
		}
		out[topic] = name
	}
	return out, nil
}

var topic0Pattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

func parseStringMap(input string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range splitAndClean(input) {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out, nil
}
