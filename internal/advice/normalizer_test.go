package advice

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/soil_advisor/internal/model/entities"
)

func TestParse_JSON(t *testing.T) {
	t.Run("Should map every recognized key verbatim", func(t *testing.T) {
		raw := `{"Fertility":"High","Moisture":"Low","pH":"6.5","Temperature":"22C",` +
			`"Sunlight":"Partial","Humidity":"55%","Evaluation":"Needs water"}`

		got := Parse(raw)

		assert.Equal(t, entities.ParsedAdvice{
			Fertility:   "High",
			Moisture:    "Low",
			PH:          "6.5",
			Temperature: "22C",
			Sunlight:    "Partial",
			Humidity:    "55%",
			Evaluation:  "Needs water",
		}, got)
	})

	t.Run("Should default missing keys to empty string", func(t *testing.T) {
		got := Parse(`{"Fertility":"High","pH":"6.5"}`)

		assert.Equal(t, entities.ParsedAdvice{Fertility: "High", PH: "6.5"}, got)
	})

	t.Run("Should match keys case-sensitively", func(t *testing.T) {
		got := Parse(`{"fertility":"High","PH":"6.5","ph":"7","Moisture":"ok"}`)

		assert.Equal(t, entities.ParsedAdvice{Moisture: "ok"}, got)
	})

	t.Run("Should take the JSON branch for an object with no recognized keys", func(t *testing.T) {
		got, src := Normalizer{}.ParseWithSource(`{"advice":"1. Rich"}`)

		assert.Equal(t, SourceJSON, src)
		assert.Equal(t, entities.ParsedAdvice{}, got)
	})

	t.Run("Should render numbers and booleans as literals", func(t *testing.T) {
		got := Parse(`{"pH": 6.8, "Temperature": -3, "Sunlight": true, "Humidity": null, "Moisture": ["a"]}`)

		assert.Equal(t, "6.8", got.PH)
		assert.Equal(t, "-3", got.Temperature)
		assert.Equal(t, "true", got.Sunlight)
		assert.Empty(t, got.Humidity)
		assert.Empty(t, got.Moisture)
	})

	t.Run("Should keep zero and false as literal text", func(t *testing.T) {
		got := Parse(`{"Fertility":0,"Moisture":false,"pH":""}`)

		assert.Equal(t, entities.ParsedAdvice{Fertility: "0", Moisture: "false"}, got)
	})

	t.Run("Should accept surrounding whitespace", func(t *testing.T) {
		got := Parse("\n  {\"Evaluation\":\"Good\"}\r\n")

		assert.Equal(t, "Good", got.Evaluation)
	})
}

func TestParse_NonObjectJSON(t *testing.T) {
	for _, raw := range []string{"[]", "42", "null", `"text"`, "true", `[{"Fertility":"High"}]`} {
		t.Run("Should yield an empty record in compat mode for "+raw, func(t *testing.T) {
			got, src := Normalizer{Mode: ModeCompat}.ParseWithSource(raw)

			assert.Equal(t, SourceJSON, src)
			assert.Equal(t, entities.ParsedAdvice{}, got)
		})
	}

	t.Run("Should fall through to the line parser in strict mode", func(t *testing.T) {
		got, src := Normalizer{Mode: ModeStrict}.ParseWithSource("42")

		assert.Equal(t, SourceLines, src)
		assert.Equal(t, entities.ParsedAdvice{Fertility: "42"}, got)
	})

	t.Run("Should still trust objects in strict mode", func(t *testing.T) {
		got := ParseStrict(`{"Fertility":"High","pH":"6.5"}`)

		assert.Equal(t, entities.ParsedAdvice{Fertility: "High", PH: "6.5"}, got)
	})
}

func TestParse_Lines(t *testing.T) {
	t.Run("Should parse the seven line report", func(t *testing.T) {
		raw := "1. Rich\n2. Moderate\n3. 6.8\n4. 25C\n5. Full sun\n6. 60%\n7. Overall Evaluation: Good"

		got, src := Normalizer{}.ParseWithSource(raw)

		assert.Equal(t, SourceLines, src)
		assert.Equal(t, entities.ParsedAdvice{
			Fertility:   "Rich",
			Moisture:    "Moderate",
			PH:          "6.8",
			Temperature: "25C",
			Sunlight:    "Full sun",
			Humidity:    "60%",
			Evaluation:  "Good",
		}, got)
	})

	t.Run("Should split CRLF line endings", func(t *testing.T) {
		raw := "1. Rich\r\n2. Moderate\r\n3. 6.8\r\n4. 25C\r\n5. Full sun\r\n6. 60%\r\n7. overall evaluation:Good  "

		got := Parse(raw)

		assert.Equal(t, "Moderate", got.Moisture)
		assert.Equal(t, "60%", got.Humidity)
		assert.Equal(t, "Good", got.Evaluation)
	})

	t.Run("Should leave missing lines empty", func(t *testing.T) {
		got := Parse("1. Rich\n2.Moderate")

		assert.Equal(t, entities.ParsedAdvice{Fertility: "Rich", Moisture: "Moderate"}, got)
	})

	t.Run("Should keep lines without an enumeration prefix", func(t *testing.T) {
		got := Parse("Rich soil\n  Moderate  \n6.8")

		assert.Equal(t, "Rich soil", got.Fertility)
		assert.Equal(t, "Moderate", got.Moisture)
		assert.Equal(t, "6.8", got.PH)
	})

	t.Run("Should ignore leading and trailing blank lines", func(t *testing.T) {
		got := Parse("\n\n1. Rich\n2. Moderate\n\n")

		assert.Equal(t, "Rich", got.Fertility)
		assert.Equal(t, "Moderate", got.Moisture)
		assert.Empty(t, got.PH)
	})

	t.Run("Should only strip the evaluation label on the seventh line", func(t *testing.T) {
		got := Parse("Overall Evaluation: x\n2\n3\n4\n5\n6\nEvaluation: fine")

		assert.Equal(t, "Overall Evaluation: x", got.Fertility)
		assert.Equal(t, "Evaluation: fine", got.Evaluation)
	})

	t.Run("Should treat malformed JSON as text", func(t *testing.T) {
		got := Parse(`{"Fertility": "High"`)

		assert.Equal(t, `{"Fertility": "High"`, got.Fertility)
	})

	t.Run("Should treat JSON behind a non-breaking space as text", func(t *testing.T) {
		got, src := Normalizer{}.ParseWithSource("\u00a0{\"Evaluation\":\"Good\"}")

		assert.Equal(t, SourceLines, src)
		assert.Equal(t, `{"Evaluation":"Good"}`, got.Fertility)
		assert.Empty(t, got.Evaluation)
	})

	t.Run("Should return an empty record for empty input", func(t *testing.T) {
		assert.Equal(t, entities.ParsedAdvice{}, Parse(""))
		assert.Equal(t, entities.ParsedAdvice{}, Parse(" \r\n "))
	})
}

func TestParse_Idempotent(t *testing.T) {
	inputs := []string{
		"1. Rich\n2. Moderate\n3. 6.8\n4. 25C\n5. Full sun\n6. 60%\n7. Overall Evaluation: Good",
		`{"Fertility":"High","pH":"6.5"}`,
		"1. only one line",
		"[]",
	}
	for _, raw := range inputs {
		first := Parse(raw)
		second := Parse(first.RecognizedJSON())
		assert.Equal(t, first, second, "input %q", raw)
	}
}

func TestParseMode(t *testing.T) {
	t.Run("Should default to strict", func(t *testing.T) {
		m, err := ParseMode("")
		require.NoError(t, err)
		assert.Equal(t, ModeStrict, m)
	})

	t.Run("Should accept compat in any case", func(t *testing.T) {
		m, err := ParseMode(" Compat ")
		require.NoError(t, err)
		assert.Equal(t, ModeCompat, m)
		assert.Equal(t, "compat", m.String())
	})

	t.Run("Should reject unknown modes", func(t *testing.T) {
		_, err := ParseMode("loose")
		assert.Error(t, err)
	})
}

func TestNormalizer_Concurrent(t *testing.T) {
	n := New(ModeStrict)
	raw := "1. Rich\n2. Moderate\n3. 6.8\n4. 25C\n5. Full sun\n6. 60%\n7. Overall Evaluation: Good"
	want := n.Parse(raw)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, n.Parse(raw))
		}()
	}
	wg.Wait()
}
