package rxflow

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config interface {
	Get(string) interface{}
	GetBool(string) bool
	GetInt(string) int
	GetIntSlice(string) []int
	GetString(string) string
	GetStringSlice(string) []string
	GetDuration(string) time.Duration

	IsSet(string) bool
	Set(string, interface{})

	GetBoolDefault(string, bool) bool
	GetIntDefault(string, int) int
	GetIntSliceDefault(string, []int) []int
	GetStringDefault(string, string) string
	GetStringSliceDefault(string, []string) []string
	GetDurationDefault(string, time.Duration) time.Duration

	GetConfig(string) (Config, bool)
}

// NewConfig returns a config reading environment variables with the given
// prefix. A key like "rxdemo.clock" maps to PREFIX_RXDEMO_CLOCK.
func NewConfig(prefix string) Config {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return &viperWrapper{v}
}

// LoadConfig is NewConfig plus a config file; the file type follows its extension.
func LoadConfig(prefix, file string) (Config, error) {
	conf := NewConfig(prefix).(*viperWrapper)
	conf.SetConfigFile(file)
	if err := conf.ReadInConfig(); err != nil {
		return nil, err
	}
	return conf, nil
}

type viperWrapper struct {
	*viper.Viper
}

func (w *viperWrapper) GetBoolDefault(key string, v bool) bool {
	if w.IsSet(key) {
		return w.GetBool(key)
	}
	return v
}

func (w *viperWrapper) GetIntDefault(key string, v int) int {
	if w.IsSet(key) {
		return w.GetInt(key)
	}
	return v
}

func (w *viperWrapper) GetIntSliceDefault(key string, v []int) []int {
	if w.IsSet(key) {
		return w.GetIntSlice(key)
	}
	return v
}

func (w *viperWrapper) GetStringDefault(key string, v string) string {
	if w.IsSet(key) {
		return w.GetString(key)
	}
	return v
}

func (w *viperWrapper) GetStringSliceDefault(key string, v []string) []string {
	if w.IsSet(key) {
		return w.GetStringSlice(key)
	}
	return v
}

func (w *viperWrapper) GetDurationDefault(key string, v time.Duration) time.Duration {
	if w.IsSet(key) {
		return w.GetDuration(key)
	}
	return v
}

func (w *viperWrapper) GetConfig(key string) (Config, bool) {
	if w.IsSet(key) {
		if sub := w.Sub(key); sub != nil {
			return &viperWrapper{sub}, true
		}
	}
	return nil, false
}
