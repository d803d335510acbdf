package model

import (
	"github.com/LeonardoBeccarini/soil_advisor/internal/model/entities"
	"github.com/LeonardoBeccarini/soil_advisor/internal/model/messages"
)

// Aliases for the types shared between services.
type (
	ParsedAdvice                     = entities.ParsedAdvice
	SensorReadings                   = entities.SensorReadings
	SensorSessionParams              = entities.SensorSessionParams
	SensorReadingsWithInterpretation = entities.SensorReadingsWithInterpretation
	SuccessMessage                   = entities.SuccessMessage
	SoilAnalysisEvent                = messages.SoilAnalysisEvent
)
