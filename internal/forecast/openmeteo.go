package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultMarineBaseURL  = "https://marine-api.open-meteo.com/v1/marine"
	defaultWeatherBaseURL = "https://api.open-meteo.com/v1/forecast"

	marineHourlyFields  = "swell_wave_height,swell_wave_direction,swell_wave_period,secondary_swell_wave_height,secondary_swell_wave_direction,secondary_swell_wave_period,wind_wave_height,wind_wave_direction,wind_wave_period"
	weatherHourlyFields = "wind_speed_10m,wind_direction_10m"
)

// OpenMeteoOptions parameterise the Open-Meteo fetcher.
type OpenMeteoOptions struct {
	MarineBaseURL  string
	WeatherBaseURL string
	Timeout        time.Duration
	UserAgent      string
	Days           int
}

// OpenMeteo fetches marine swell data and joins surface wind from the
// weather endpoint into hourly samples.
type OpenMeteo struct {
	opts   OpenMeteoOptions
	client *http.Client
	logger zerolog.Logger
}

// NewOpenMeteo constructs an Open-Meteo fetcher.
func NewOpenMeteo(opts OpenMeteoOptions, logger zerolog.Logger) *OpenMeteo {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MarineBaseURL == "" {
		opts.MarineBaseURL = defaultMarineBaseURL
	}
	if opts.WeatherBaseURL == "" {
		opts.WeatherBaseURL = defaultWeatherBaseURL
	}
	if opts.Days <= 0 {
		opts.Days = 3
	}
	opts.MarineBaseURL = strings.TrimRight(opts.MarineBaseURL, "/")
	opts.WeatherBaseURL = strings.TrimRight(opts.WeatherBaseURL, "/")

	return &OpenMeteo{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		logger: logger.With().Str("component", "forecast_fetcher").Logger(),
	}
}

type hourlyResponse struct {
	Hourly map[string]json.RawMessage `json:"hourly"`
}

// Fetch retrieves the hourly series for the given coordinates. The wind join
// is best effort: a failed weather request yields samples without wind.
func (f *OpenMeteo) Fetch(ctx context.Context, spotID string, lat, lon float64) ([]Sample, error) {
	marine, err := f.getHourly(ctx, f.opts.MarineBaseURL, lat, lon, marineHourlyFields)
	if err != nil {
		return nil, fmt.Errorf("fetch marine forecast: %w", err)
	}

	times, err := timeColumn(marine)
	if err != nil {
		return nil, fmt.Errorf("parse marine forecast: %w", err)
	}

	samples := make([]Sample, 0, len(times))
	for i, ts := range times {
		sample := Sample{
			Time:   time.Unix(ts, 0).UTC(),
			SpotID: spotID,
		}
		for _, group := range [][3]string{
			{"swell_wave_height", "swell_wave_direction", "swell_wave_period"},
			{"secondary_swell_wave_height", "secondary_swell_wave_direction", "secondary_swell_wave_period"},
			{"wind_wave_height", "wind_wave_direction", "wind_wave_period"},
		} {
			height, ok := floatAt(marine, group[0], i)
			if !ok || height <= 0 {
				continue
			}
			angle, _ := floatAt(marine, group[1], i)
			period, _ := floatAt(marine, group[2], i)
			sample.Swells = append(sample.Swells, Swell{Angle: angle, Height: height, Period: period})
		}
		// Energy proxy: squared combined height times the dominant period.
		sample.Energy = sample.CombinedHeight() * sample.CombinedHeight() * sample.PrimaryPeriod()
		samples = append(samples, sample)
	}

	f.joinWind(ctx, lat, lon, samples)

	f.logger.Debug().Str("spot", spotID).Int("samples", len(samples)).Msg("forecast fetched")
	return samples, nil
}

func (f *OpenMeteo) joinWind(ctx context.Context, lat, lon float64, samples []Sample) {
	weather, err := f.getHourly(ctx, f.opts.WeatherBaseURL, lat, lon, weatherHourlyFields)
	if err != nil {
		f.logger.Warn().Err(err).Msg("wind fetch failed; samples carry no wind")
		return
	}
	times, err := timeColumn(weather)
	if err != nil {
		f.logger.Warn().Err(err).Msg("wind response unparseable; samples carry no wind")
		return
	}

	byTime := make(map[int64]int, len(times))
	for i, ts := range times {
		byTime[ts] = i
	}
	for i := range samples {
		idx, ok := byTime[samples[i].Time.Unix()]
		if !ok {
			continue
		}
		if speed, ok := floatAt(weather, "wind_speed_10m", idx); ok {
			samples[i].WindSpeed = speed
		}
		if angle, ok := floatAt(weather, "wind_direction_10m", idx); ok {
			samples[i].WindAngle = angle
		}
	}
}

func (f *OpenMeteo) getHourly(ctx context.Context, base string, lat, lon float64, fields string) (map[string]json.RawMessage, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", lat))
	params.Set("longitude", fmt.Sprintf("%.4f", lon))
	params.Set("hourly", fields)
	params.Set("timeformat", "unixtime")
	params.Set("timezone", "UTC")
	params.Set("wind_speed_unit", "kn")
	params.Set("forecast_days", fmt.Sprintf("%d", f.opts.Days))

	endpoint := base + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(f.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open-meteo error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded hourlyResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, err
	}
	if decoded.Hourly == nil {
		return nil, fmt.Errorf("response missing hourly block")
	}
	return decoded.Hourly, nil
}

func timeColumn(hourly map[string]json.RawMessage) ([]int64, error) {
	raw, ok := hourly["time"]
	if !ok {
		return nil, fmt.Errorf("hourly block missing time column")
	}
	var times []int64
	if err := json.Unmarshal(raw, &times); err != nil {
		return nil, fmt.Errorf("parse time column: %w", err)
	}
	return times, nil
}

// floatAt reads column[i], tolerating missing columns and JSON nulls that
// Open-Meteo emits for hours without data.
func floatAt(hourly map[string]json.RawMessage, column string, i int) (float64, bool) {
	raw, ok := hourly[column]
	if !ok {
		return 0, false
	}
	var values []*float64
	if err := json.Unmarshal(raw, &values); err != nil {
		return 0, false
	}
	if i < 0 || i >= len(values) || values[i] == nil {
		return 0, false
	}
	return *values[i], true
}

var _ Fetcher = (*OpenMeteo)(nil)
