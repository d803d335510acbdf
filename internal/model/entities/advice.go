package entities

import "encoding/json"

// Recognized keys of the JSON form of an advice report.
const (
	KeyFertility   = "Fertility"
	KeyMoisture    = "Moisture"
	KeyPH          = "pH"
	KeyTemperature = "Temperature"
	KeySunlight    = "Sunlight"
	KeyHumidity    = "Humidity"
	KeyEvaluation  = "Evaluation"
)

// ParsedAdvice is the interpretation of a soil reading. All fields are always
// present; an unrecoverable field is the empty string.
type ParsedAdvice struct {
	Fertility   string `json:"fertility"`
	Moisture    string `json:"moisture"`
	PH          string `json:"ph"`
	Temperature string `json:"temperature"`
	Sunlight    string `json:"sunlight"`
	Humidity    string `json:"humidity"`
	Evaluation  string `json:"evaluation"`
}

// Recognized returns the advice keyed by the report's own field names.
func (a ParsedAdvice) Recognized() map[string]string {
	return map[string]string{
		KeyFertility:   a.Fertility,
		KeyMoisture:    a.Moisture,
		KeyPH:          a.PH,
		KeyTemperature: a.Temperature,
		KeySunlight:    a.Sunlight,
		KeyHumidity:    a.Humidity,
		KeyEvaluation:  a.Evaluation,
	}
}

// RecognizedJSON encodes the advice back into the report's JSON form.
func (a ParsedAdvice) RecognizedJSON() string {
	// a map of strings always marshals
	b, _ := json.Marshal(a.Recognized())
	return string(b)
}
