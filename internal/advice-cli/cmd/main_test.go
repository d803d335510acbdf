package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/soil_advisor/internal/model"
)

const report = "1. Rich\n2. Moderate\n3. 6.8\n4. 25C\n5. Full sun\n6. 60%\n7. Overall Evaluation: Good"

func execute(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(strings.NewReader(stdin), &out)
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestRootCommand(t *testing.T) {
	t.Run("Should normalize stdin", func(t *testing.T) {
		var got model.ParsedAdvice
		require.NoError(t, json.Unmarshal([]byte(execute(t, report)), &got))

		assert.Equal(t, "Rich", got.Fertility)
		assert.Equal(t, "Good", got.Evaluation)
	})

	t.Run("Should read a file argument", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "advice.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"pH":"6.5"}`), 0o600))

		var got model.ParsedAdvice
		require.NoError(t, json.Unmarshal([]byte(execute(t, "", path)), &got))
		assert.Equal(t, model.ParsedAdvice{PH: "6.5"}, got)
	})

	t.Run("Should honor strict mode for non-object JSON", func(t *testing.T) {
		var compat, strict model.ParsedAdvice
		require.NoError(t, json.Unmarshal([]byte(execute(t, "42")), &compat))
		require.NoError(t, json.Unmarshal([]byte(execute(t, "42", "--strict")), &strict))

		assert.Equal(t, model.ParsedAdvice{}, compat)
		assert.Equal(t, "42", strict.Fertility)
	})

	t.Run("Should report the parser with --source", func(t *testing.T) {
		var got struct {
			Source string             `json:"source"`
			Advice model.ParsedAdvice `json:"advice"`
		}
		require.NoError(t, json.Unmarshal([]byte(execute(t, report, "--source")), &got))
		assert.Equal(t, "lines", got.Source)
		assert.Equal(t, "Rich", got.Advice.Fertility)
	})
}

func TestInteractive(t *testing.T) {
	t.Run("Should normalize each block on DONE and stop on quit", func(t *testing.T) {
		in := report + "\n  done \n{\"Evaluation\":\"Poor\"}\nDONE\nquit\nignored\nDONE\n"

		out := execute(t, in, "--interactive")

		assert.Equal(t, 2, strings.Count(out, `"fertility"`))
		assert.Contains(t, out, `"evaluation": "Good"`)
		assert.Contains(t, out, `"evaluation": "Poor"`)
	})

	t.Run("Should end quietly at end of input", func(t *testing.T) {
		out := execute(t, "1. Rich\n", "-i")
		assert.NotContains(t, out, `"fertility"`)
	})
}
