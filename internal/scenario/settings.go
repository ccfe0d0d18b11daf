package scenario

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iancoleman/strcase"

	"github.com/7vars/rxflow"
	"github.com/7vars/rxflow/rx"
)

type Settings struct {
	Scenario string
	Strategy rx.Strategy
	// Clicks are offsets from the start of the run.
	Clicks  []time.Duration
	Period  time.Duration
	Take    int
	Latency time.Duration
	Jitter  time.Duration
	Seed    int64
}

func Defaults() Settings {
	return Settings{
		Scenario: "clicks",
		Strategy: rx.MergeStrategy,
		Clicks:   []time.Duration{0, 1500 * time.Millisecond},
		Period:   time.Second,
		Take:     3,
		Seed:     1,
	}
}

// FromConfig reads the rxdemo.* keys; unset keys keep their default.
func FromConfig(conf rxflow.Config) (Settings, error) {
	s := Defaults()

	s.Scenario = strcase.ToSnake(conf.GetStringDefault("rxdemo.scenario", s.Scenario))

	st, err := rx.ParseStrategy(strcase.ToSnake(conf.GetStringDefault("rxdemo.strategy", s.Strategy.String())))
	if err != nil {
		return s, err
	}
	s.Strategy = st

	if conf.IsSet("rxdemo.clicks") {
		clicks, err := parseOffsets(conf.GetStringSlice("rxdemo.clicks"))
		if err != nil {
			return s, err
		}
		s.Clicks = clicks
	}

	s.Period = conf.GetDurationDefault("rxdemo.period", s.Period)
	s.Take = conf.GetIntDefault("rxdemo.take", s.Take)
	s.Latency = conf.GetDurationDefault("rxdemo.latency", s.Latency)
	s.Jitter = conf.GetDurationDefault("rxdemo.jitter", s.Jitter)
	s.Seed = int64(conf.GetIntDefault("rxdemo.seed", int(s.Seed)))

	if s.Period <= 0 {
		return s, fmt.Errorf("rxdemo.period must be positive, got %s", s.Period)
	}
	if s.Latency < 0 || s.Jitter < 0 {
		return s, fmt.Errorf("rxdemo.latency and rxdemo.jitter must not be negative")
	}
	return s, nil
}

// parseOffsets accepts durations like "1.5s"; bare numbers are milliseconds.
func parseOffsets(values []string) ([]time.Duration, error) {
	result := make([]time.Duration, 0, len(values))
	for _, v := range values {
		for _, field := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			d, err := parseOffset(field)
			if err != nil {
				return nil, err
			}
			result = append(result, d)
		}
	}
	return result, nil
}

func parseOffset(v string) (time.Duration, error) {
	var d time.Duration
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		d = time.Duration(ms) * time.Millisecond
	} else if d, err = time.ParseDuration(v); err != nil {
		return 0, fmt.Errorf("invalid click offset %q: %w", v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid click offset %q: negative", v)
	}
	return d, nil
}
