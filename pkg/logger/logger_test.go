package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("Should write JSON records with key/value pairs", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(Config{Level: "info", JSON: true, Output: &buf})

		l.Info("analysis stored", "farm", "north")

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "analysis stored", rec["msg"])
		assert.Equal(t, "north", rec["farm"])
	})

	t.Run("Should drop records below the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(Config{Level: "warn", Output: &buf})

		l.Info("hidden")
		l.Debug("hidden")

		assert.Empty(t, buf.String())
	})
}

func TestFromContext(t *testing.T) {
	t.Run("Should return the logger stored in the context", func(t *testing.T) {
		l := New(Config{})
		ctx := ContextWithLogger(context.Background(), l)

		assert.Same(t, l, FromContext(ctx))
	})

	t.Run("Should fall back to the default logger", func(t *testing.T) {
		assert.Equal(t, Default(), FromContext(context.Background()))
	})
}
