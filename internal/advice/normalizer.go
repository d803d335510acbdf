// Package advice turns the free-form output of the soil sensor team into a
// fixed ParsedAdvice record.
//
// The report comes in two shapes: a JSON object keyed by the recognized field
// names, or a seven line enumerated text ("1. ...", ..., "7. Overall
// Evaluation: ..."). JSON is tried first and the line parser is the fallback.
// Parsing never fails; whatever cannot be recovered is left empty.
package advice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/LeonardoBeccarini/soil_advisor/internal/model/entities"
)

// Mode decides what happens to input that is valid JSON but not an object.
type Mode int

const (
	// ModeCompat takes the JSON branch for any valid JSON, so arrays and
	// primitives produce an all-empty record.
	ModeCompat Mode = iota
	// ModeStrict only trusts JSON objects; anything else goes to the line parser.
	ModeStrict
)

func (m Mode) String() string {
	switch m {
	case ModeStrict:
		return "strict"
	case ModeCompat:
		return "compat"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a configuration value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return ModeStrict, nil
	case "compat":
		return ModeCompat, nil
	default:
		return ModeCompat, fmt.Errorf("unknown advice parse mode %q", s)
	}
}

// Source reports which branch produced a record.
type Source string

const (
	SourceJSON  Source = "json"
	SourceLines Source = "lines"
)

// jsonSpace is the whitespace JSON allows around a value; wider Unicode
// spaces such as NBSP make the input text.
const jsonSpace = " \t\r\n"

var (
	lineBreak  = regexp.MustCompile(`\r?\n`)
	enumPrefix = regexp.MustCompile(`^\d+\.\s*`)
	evalLabel  = regexp.MustCompile(`(?i)^Overall Evaluation:\s*`)
)

// Normalizer is safe for concurrent use; it holds no state beyond its mode.
type Normalizer struct {
	Mode Mode
}

func New(mode Mode) Normalizer { return Normalizer{Mode: mode} }

// Parse normalizes raw in compatibility mode.
func Parse(raw string) entities.ParsedAdvice {
	a, _ := Normalizer{Mode: ModeCompat}.ParseWithSource(raw)
	return a
}

// ParseStrict normalizes raw, sending non-object JSON to the line parser.
func ParseStrict(raw string) entities.ParsedAdvice {
	a, _ := Normalizer{Mode: ModeStrict}.ParseWithSource(raw)
	return a
}

func (n Normalizer) Parse(raw string) entities.ParsedAdvice {
	a, _ := n.ParseWithSource(raw)
	return a
}

// ParseWithSource normalizes raw and reports the branch that handled it.
func (n Normalizer) ParseWithSource(raw string) (entities.ParsedAdvice, Source) {
	trimmed := bytes.Trim([]byte(raw), jsonSpace)
	if json.Valid(trimmed) {
		if trimmed[0] == '{' {
			return fromObject(trimmed), SourceJSON
		}
		if n.Mode != ModeStrict {
			return entities.ParsedAdvice{}, SourceJSON
		}
	}
	return fromLines(raw), SourceLines
}

func fromObject(b []byte) entities.ParsedAdvice {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		// unreachable for valid JSON starting with '{'
		return entities.ParsedAdvice{}
	}
	return entities.ParsedAdvice{
		Fertility:   scalar(obj[entities.KeyFertility]),
		Moisture:    scalar(obj[entities.KeyMoisture]),
		PH:          scalar(obj[entities.KeyPH]),
		Temperature: scalar(obj[entities.KeyTemperature]),
		Sunlight:    scalar(obj[entities.KeySunlight]),
		Humidity:    scalar(obj[entities.KeyHumidity]),
		Evaluation:  scalar(obj[entities.KeyEvaluation]),
	}
}

// scalar renders a JSON value as text: strings as-is, numbers and booleans as
// written. null, arrays and objects have no text form.
func scalar(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return ""
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return ""
		}
		return s
	case 't', 'f', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return string(v)
	default:
		return ""
	}
}

func fromLines(raw string) entities.ParsedAdvice {
	lines := lineBreak.Split(strings.TrimSpace(raw), -1)
	line := func(i int) string {
		if i >= len(lines) {
			return ""
		}
		return strings.TrimSpace(enumPrefix.ReplaceAllString(lines[i], ""))
	}
	return entities.ParsedAdvice{
		Fertility:   line(0),
		Moisture:    line(1),
		PH:          line(2),
		Temperature: line(3),
		Sunlight:    line(4),
		Humidity:    line(5),
		Evaluation:  strings.TrimSpace(evalLabel.ReplaceAllString(line(6), "")),
	}
}
