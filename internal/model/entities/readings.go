package entities

// SensorReadings is one reading of a soil sensor as submitted by a farmer.
type SensorReadings struct {
	FarmName    string  `json:"farmName" validate:"required,max=128"`
	CropType    string  `json:"cropType,omitempty" validate:"max=64"`
	SensorID    string  `json:"sensorId,omitempty" validate:"max=64"`
	Fertility   float64 `json:"fertility" validate:"gte=0"`
	Moisture    float64 `json:"moisture" validate:"gte=0,lte=100"`
	PH          float64 `json:"ph" validate:"gte=0,lte=14"`
	Temperature float64 `json:"temperature"`
	Sunlight    float64 `json:"sunlight" validate:"gte=0"`
	Humidity    float64 `json:"humidity" validate:"gte=0,lte=100"`
}

// SensorSessionParams is the body of an analysis request; it is forwarded
// as-is to the soil sensor team.
type SensorSessionParams struct {
	SensorData SensorReadings `json:"sensorData" validate:"required"`
}

// SensorReadingsWithInterpretation is the persisted result of an analysis.
type SensorReadingsWithInterpretation struct {
	SensorReadings
	ID             string       `json:"id"`
	Username       string       `json:"username"`
	Interpretation ParsedAdvice `json:"interpretation"`
	SubmittedAt    string       `json:"submittedAt"` // RFC3339
	CreatedAt      string       `json:"createdAt"`   // RFC3339
}

// SuccessMessage is returned by write operations.
type SuccessMessage struct {
	Success string `json:"success"`
}
