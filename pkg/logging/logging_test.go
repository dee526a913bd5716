package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-park/flow/pkg/config"
)

func TestNewWithOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithOutput(config.LogSettings{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	l.WithField("class", "shop.Order").Debug("compiled")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shop.Order", entry["class"])
	assert.Equal(t, "compiled", entry["msg"])
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(config.LogSettings{Level: "loud"})
	assert.Error(t, err)
}
