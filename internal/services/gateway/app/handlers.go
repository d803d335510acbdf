package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/LeonardoBeccarini/soil_advisor/internal/model"
	"github.com/LeonardoBeccarini/soil_advisor/internal/services/soil"
	"github.com/LeonardoBeccarini/soil_advisor/internal/services/weather"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/auth"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/breaker"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/logger"
)

const (
	maxBodyBytes = 1 << 20

	analysisFailedMessage = "Failed to process sensor analysis."
)

var errUnauthorized = errors.New("unauthorized")

type errorBody struct {
	Error string `json:"error"`
}

func (g *Gateway) HandleSaveSensorReadings(w http.ResponseWriter, r *http.Request) {
	var params model.SensorSessionParams
	if err := g.decode(w, r, &params); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	msg, err := g.soil.Analyze(r.Context(), tokenFrom(r.Context()), params)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (g *Gateway) HandleListSoilAnalysis(w http.ResponseWriter, r *http.Request) {
	out, err := g.soil.List(r.Context(), tokenFrom(r.Context()))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (g *Gateway) HandleListSoilAnalysisByFarm(w http.ResponseWriter, r *http.Request) {
	farm := mux.Vars(r)["farmName"]
	out, err := g.soil.ListByFarm(r.Context(), tokenFrom(r.Context()), farm)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (g *Gateway) HandleCurrentWeather(w http.ResponseWriter, r *http.Request) {
	if err := g.authorize(r); err != nil {
		g.fail(w, r, err)
		return
	}
	cur, err := g.weather.Current(r.Context(), mux.Vars(r)["location"])
	if err != nil {
		g.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

func (g *Gateway) HandleCurrentWeatherByCoordinates(w http.ResponseWriter, r *http.Request) {
	if err := g.authorize(r); err != nil {
		g.fail(w, r, err)
		return
	}
	vars := mux.Vars(r)
	lat, latErr := strconv.ParseFloat(vars["lat"], 64)
	lon, lonErr := strconv.ParseFloat(vars["lon"], 64)
	if latErr != nil || lonErr != nil || math.Abs(lat) > 90 || math.Abs(lon) > 180 {
		writeError(w, http.StatusBadRequest, "invalid coordinates")
		return
	}
	cur, err := g.weather.CurrentByCoordinates(r.Context(), lat, lon)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

// authorize verifies the bearer token of routes served outside the soil service.
func (g *Gateway) authorize(r *http.Request) error {
	if g.cfg.Verifier == nil {
		return errUnauthorized
	}
	if _, err := g.cfg.Verifier.VerifyAccessToken(r.Context(), tokenFrom(r.Context())); err != nil {
		return fmt.Errorf("%w: %v", errUnauthorized, err)
	}
	return nil
}

// decode reads a JSON body and runs the struct validation tags.
func (g *Gateway) decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := g.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid field %s: failed %q", fe.Namespace(), fe.Tag())
		}
		return err
	}
	return nil
}

func (g *Gateway) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "code", code, "err", err)
	}
	writeError(w, code, msg)
}

// statusFor maps service errors to a status code and a client-facing message.
func statusFor(err error) (int, string) {
	var locErr *weather.LocationError
	switch {
	case errors.Is(err, auth.ErrMissingBearer):
		return http.StatusUnauthorized, auth.ErrMissingBearer.Error()
	case errors.Is(err, soil.ErrUnauthorized), errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, weather.ErrLocationRequired):
		return http.StatusBadRequest, weather.ErrLocationRequired.Error()
	case errors.As(err, &locErr):
		return http.StatusBadRequest, locErr.Message
	case breaker.IsOpen(err):
		if errors.Is(err, soil.ErrAnalysisFailed) {
			return http.StatusServiceUnavailable, analysisFailedMessage
		}
		return http.StatusServiceUnavailable, "upstream unavailable"
	case errors.Is(err, soil.ErrAnalysisFailed):
		return http.StatusInternalServerError, analysisFailedMessage
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func nonNil(in []model.SensorReadingsWithInterpretation) []model.SensorReadingsWithInterpretation {
	if in == nil {
		return []model.SensorReadingsWithInterpretation{}
	}
	return in
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}
