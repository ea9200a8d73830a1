package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/health"),
		attribute.String("telegram.token", "123:abc"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorRedactsBotToken(t *testing.T) {
	err := SafeError(errors.New(`Post "https://api.telegram.org/bot123:abc/sendMessage": timeout`))
	assert.Equal(t, `Post "https://api.telegram.org/bot<redacted>`, err.Error())
	assert.Nil(t, SafeError(nil))
}

func TestClampRatio(t *testing.T) {
	assert.Equal(t, 0.0, clampRatio(-1))
	assert.Equal(t, 1.0, clampRatio(3))
	assert.Equal(t, 0.25, clampRatio(0.25))
}
