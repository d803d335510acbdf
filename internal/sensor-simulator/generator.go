package sensor_simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/LeonardoBeccarini/soil_advisor/internal/model"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/logger"
)

const (
	// defaultSeed is the volumetric moisture used when SoilGrids is unavailable.
	defaultSeed = 0.30

	soilGridsURL  = "https://rest.isric.org"
	soilGridsPath = "/soilgrids/v2.0/properties/query"
)

// Baseline is the resting point the random walk drifts around.
type Baseline struct {
	Fertility   float64 // mg/kg
	PH          float64
	Temperature float64 // °C
	Sunlight    float64 // lux
	Humidity    float64 // %
}

var DefaultBaseline = Baseline{Fertility: 120, PH: 6.5, Temperature: 20, Sunlight: 20000, Humidity: 55}

// DataGenerator keeps the simulated soil state and advances it over time.
// Moisture decays exponentially at decayPerMin per minute; the other
// readings random-walk.
type DataGenerator struct {
	mu          sync.Mutex
	seeded      bool
	last        time.Time
	moisture    float64 // [0..1]
	decayPerMin float64
	base        Baseline
	cur         Baseline
	rnd         *rand.Rand
	now         func() time.Time
	http        *resty.Client
}

func NewDataGenerator(decayPerMin float64, base Baseline, seed int64) *DataGenerator {
	return &DataGenerator{
		decayPerMin: math.Max(0, decayPerMin),
		base:        base,
		cur:         base,
		rnd:         rand.New(rand.NewSource(seed)),
		now:         time.Now,
		http: resty.New().
			SetBaseURL(soilGridsURL).
			SetTimeout(8*time.Second).
			SetHeader("User-Agent", "soil-advisor-simulator/1.0"),
	}
}

// SeedFromSoilGrids fetches the initial moisture once. On failure the
// default seed is used.
func (g *DataGenerator) SeedFromSoilGrids(ctx context.Context, lat, lon float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seeded {
		return
	}

	seed := defaultSeed
	if lat != 0 || lon != 0 {
		m, err := g.fetchSoilMoisture(ctx, lat, lon)
		if err != nil {
			logger.FromContext(ctx).Warn("soilgrids seed unavailable, using default", "err", err, "seed", defaultSeed)
		} else {
			seed = m
		}
	}
	g.moisture = clamp(seed, 0, 1)
	g.last = g.now().UTC()
	g.seeded = true
}

// Next advances the state to now and returns a reading for farm.
func (g *DataGenerator) Next(farm, cropType, sensorID string) model.SensorReadings {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	if !g.seeded {
		g.moisture = defaultSeed
		g.last = now
		g.seeded = true
	}
	dtMin := math.Max(0, now.Sub(g.last).Minutes())
	g.moisture = clamp(g.moisture*math.Exp(-g.decayPerMin*dtMin), 0, 1)
	g.last = now

	g.cur.Fertility = clamp(g.walk(g.cur.Fertility, g.base.Fertility, 2), 0, math.MaxFloat64)
	g.cur.PH = clamp(g.walk(g.cur.PH, g.base.PH, 0.05), 0, 14)
	g.cur.Temperature = g.walk(g.cur.Temperature, g.base.Temperature, 0.3)
	g.cur.Sunlight = clamp(g.walk(g.cur.Sunlight, g.base.Sunlight, 500), 0, math.MaxFloat64)
	g.cur.Humidity = clamp(g.walk(g.cur.Humidity, g.base.Humidity, 1), 0, 100)

	return model.SensorReadings{
		FarmName:    farm,
		CropType:    cropType,
		SensorID:    sensorID,
		Fertility:   round(g.cur.Fertility, 1),
		Moisture:    round(g.moisture*100, 1),
		PH:          round(g.cur.PH, 2),
		Temperature: round(g.cur.Temperature, 1),
		Sunlight:    math.Round(g.cur.Sunlight),
		Humidity:    round(g.cur.Humidity, 1),
	}
}

// walk takes a gaussian step of size sigma, pulled a tenth of the way back
// toward the baseline.
func (g *DataGenerator) walk(cur, base, sigma float64) float64 {
	return cur + (base-cur)*0.1 + g.rnd.NormFloat64()*sigma
}

func (g *DataGenerator) fetchSoilMoisture(ctx context.Context, lat, lon float64) (float64, error) {
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)

	var out float64
	err := backoff.Retry(func() error {
		resp, err := g.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"lat":      fmt.Sprintf("%f", lat),
				"lon":      fmt.Sprintf("%f", lon),
				"property": "wv0010",
			}).
			Get(soilGridsPath)
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode() == http.StatusOK:
		case resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500:
			return fmt.Errorf("soilgrids HTTP %d", resp.StatusCode())
		default:
			return backoff.Permanent(fmt.Errorf("soilgrids HTTP %d: %s", resp.StatusCode(), resp.String()))
		}

		var parsed any
		if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
			return backoff.Permanent(err)
		}
		m := extractMoisture(parsed)
		if m < 0 {
			return backoff.Permanent(fmt.Errorf("soilgrids: moisture field not found"))
		}
		out = normalizeWV(m)
		return nil
	}, bo)
	if err != nil {
		return -1, err
	}
	return out, nil
}

// extractMoisture looks for the first depth value of the first layer, either
// at the top level or inside the first feature.
func extractMoisture(v any) float64 {
	m, ok := v.(map[string]any)
	if !ok {
		return -1
	}
	if feats, ok := m["features"].([]any); ok && len(feats) > 0 {
		if f0, ok := feats[0].(map[string]any); ok {
			if p, ok := f0["properties"].(map[string]any); ok {
				if x := fromProperties(p); x >= 0 {
					return x
				}
			}
		}
	}
	if p, ok := m["properties"].(map[string]any); ok {
		return fromProperties(p)
	}
	return -1
}

func fromProperties(p map[string]any) float64 {
	layers, ok := p["layers"].([]any)
	if !ok || len(layers) == 0 {
		return -1
	}
	l0, ok := layers[0].(map[string]any)
	if !ok {
		return -1
	}
	depths, ok := l0["depths"].([]any)
	if !ok || len(depths) == 0 {
		return -1
	}
	d0, ok := depths[0].(map[string]any)
	if !ok {
		return -1
	}
	vals, ok := d0["values"].(map[string]any)
	if !ok {
		return -1
	}
	for _, k := range []string{"Q0.5", "mean", "Q0.95", "Q0.05"} {
		if f, ok := vals[k].(float64); ok {
			return f
		}
	}
	return -1
}

// normalizeWV maps SoilGrids wv values to [0..1]; values above 1.5 are
// thousandths of m3/m3.
func normalizeWV(x float64) float64 {
	if x > 1.5 {
		x /= 1000
	}
	return clamp(x, 0, 1)
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, x))
}

func round(x float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(x*p) / p
}
