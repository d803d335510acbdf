package messages

import "time"

// SoilAnalysisEvent is published after an analysis has been stored.
type SoilAnalysisEvent struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	FarmName   string    `json:"farm_name"`
	SensorID   string    `json:"sensor_id,omitempty"`
	Evaluation string    `json:"evaluation"`
	Timestamp  time.Time `json:"timestamp"`
}
