package weather

// CurrentWeather is the current.json reply of WeatherAPI.
type CurrentWeather struct {
	Location Location   `json:"location"`
	Current  Conditions `json:"current"`
}

type Location struct {
	Name      string  `json:"name"`
	Region    string  `json:"region"`
	Country   string  `json:"country"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	TzID      string  `json:"tz_id,omitempty"`
	Localtime string  `json:"localtime"`
}

type Conditions struct {
	LastUpdated string    `json:"last_updated"`
	TempC       float64   `json:"temp_c"`
	TempF       float64   `json:"temp_f"`
	IsDay       int       `json:"is_day"`
	Condition   Condition `json:"condition"`
	WindKph     float64   `json:"wind_kph"`
	WindDir     string    `json:"wind_dir,omitempty"`
	PressureMb  float64   `json:"pressure_mb"`
	PrecipMm    float64   `json:"precip_mm"`
	Humidity    int       `json:"humidity"`
	Cloud       int       `json:"cloud"`
	FeelsLikeC  float64   `json:"feelslike_c"`
	UV          float64   `json:"uv"`
}

type Condition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
	Code int    `json:"code"`
}

// apiError is the error envelope WeatherAPI returns with 4xx replies.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
