package scenario

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7vars/rxflow"
	"github.com/7vars/rxflow/rx"
)

func TestFromConfigDefaults(t *testing.T) {
	settings, err := FromConfig(rxflow.NewConfig("rxdemo_test"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), settings)
}

func TestFromConfig(t *testing.T) {
	conf := rxflow.NewConfig("rxdemo_test")
	conf.Set("rxdemo.strategy", "SwitchMap")
	conf.Set("rxdemo.clicks", "0 1500ms 2s")
	conf.Set("rxdemo.period", "250ms")
	conf.Set("rxdemo.take", 5)
	conf.Set("rxdemo.latency", "20ms")

	settings, err := FromConfig(conf)
	require.NoError(t, err)
	assert.Equal(t, rx.SwitchStrategy, settings.Strategy)
	assert.Equal(t, []time.Duration{0, 1500 * time.Millisecond, 2 * time.Second}, settings.Clicks)
	assert.Equal(t, 250*time.Millisecond, settings.Period)
	assert.Equal(t, 5, settings.Take)
	assert.Equal(t, 20*time.Millisecond, settings.Latency)
}

func TestFromConfigStrategyNames(t *testing.T) {
	for name, expected := range map[string]rx.Strategy{
		"concat-map": rx.ConcatStrategy,
		"ExhaustMap": rx.ExhaustStrategy,
		"flatMap":    rx.MergeStrategy,
	} {
		conf := rxflow.NewConfig("rxdemo_test")
		conf.Set("rxdemo.strategy", name)
		settings, err := FromConfig(conf)
		require.NoError(t, err, name)
		assert.Equal(t, expected, settings.Strategy, name)
	}
}

func TestFromConfigRejectsInvalidValues(t *testing.T) {
	for key, value := range map[string]interface{}{
		"rxdemo.strategy": "zip",
		"rxdemo.clicks":   "0 soon",
		"rxdemo.period":   "0s",
		"rxdemo.jitter":   "-1s",
	} {
		conf := rxflow.NewConfig("rxdemo_test")
		conf.Set(key, value)
		_, err := FromConfig(conf)
		assert.Error(t, err, key)
	}
}

func TestParseOffsets(t *testing.T) {
	offsets, err := parseOffsets([]string{"100,250", "1s"})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 250 * time.Millisecond, time.Second}, offsets)

	_, err = parseOffsets([]string{"-5"})
	assert.Error(t, err)
}
