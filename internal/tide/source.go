package tide

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

// Source provides the tide-table events for one port and civil day.
type Source interface {
	Events(ctx context.Context, port string, day time.Time) ([]Event, error)
}

// HTTPOptions parameterise the tide-table client.
type HTTPOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// HTTPSource fetches tide tables from a JSON endpoint.
type HTTPSource struct {
	opts    HTTPOptions
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewHTTPSource constructs a tide-table client.
func NewHTTPSource(opts HTTPOptions, logger zerolog.Logger) *HTTPSource {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		logger:  logger.With().Str("component", "tide_source").Logger(),
	}
}

type tideResponse struct {
	Events []struct {
		Datetime string  `json:"datetime"`
		Height   float64 `json:"height"`
		Type     string  `json:"type"`
	} `json:"events"`
}

// Events fetches the day's extremes for a port. Unparseable entries are
// skipped rather than failing the day.
func (s *HTTPSource) Events(ctx context.Context, port string, day time.Time) ([]Event, error) {
	if s.baseURL == "" {
		return nil, fmt.Errorf("tide base url not configured")
	}

	params := url.Values{}
	params.Set("port", port)
	params.Set("date", day.Format("2006-01-02"))

	endpoint := s.baseURL + "/tides?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(s.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tide api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded tideResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("parse tide response: %w", err)
	}

	events := make([]Event, 0, len(decoded.Events))
	for _, raw := range decoded.Events {
		ts, err := time.Parse(time.RFC3339, raw.Datetime)
		if err != nil {
			s.logger.Warn().Str("port", port).Str("datetime", raw.Datetime).Msg("skipping unparseable tide event")
			continue
		}
		typ := Type(strings.ToLower(raw.Type))
		if typ != TypeHigh && typ != TypeLow {
			s.logger.Warn().Str("port", port).Str("type", raw.Type).Msg("skipping tide event of unknown type")
			continue
		}
		events = append(events, Event{Time: ts, Height: raw.Height, Type: typ})
	}
	return events, nil
}

var _ Source = (*HTTPSource)(nil)
