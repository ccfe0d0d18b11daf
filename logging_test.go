package rxflow

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, logrus.InfoLevel)

	logger.With(map[string]interface{}{"strategy": "merge"}).WithField("click", 1).Infof("value %d", 2)
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "strategy=merge")
	assert.Contains(t, out, "click=1")
	assert.Contains(t, out, `msg="value 2"`)
	assert.NotContains(t, out, "hidden")
}
