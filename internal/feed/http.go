package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/triagemap/internal/zone"
)

// maxBodyBytes caps how much of a feed response is read.
const maxBodyBytes = 8 << 20

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit for feed calls.
func WithRateLimit(rps float64) HTTPOption {
	return func(s *HTTPSource) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(p RetryPolicy) HTTPOption {
	return func(s *HTTPSource) {
		s.retry = p
	}
}

// HTTPSource reads region statistics from a remote aggregation service at
// GET {baseURL}/api/disease-location/{id}.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryPolicy
}

// NewHTTPSource creates an HTTPSource for the given base URL.
func NewHTTPSource(baseURL string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
		retry:      DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch requests the disease's region statistics.
func (s *HTTPSource) Fetch(ctx context.Context, diseaseID int) (*Response, error) {
	resp, err := withRetry(ctx, s.retry, diseaseID, func(ctx context.Context) (*Response, error) {
		return s.fetch(ctx, diseaseID)
	})
	if err != nil {
		zap.L().Error("feed: request failed",
			zap.Int("disease_id", diseaseID),
			zap.String("base_url", s.baseURL),
			zap.Error(err),
		)
		return nil, &Error{DiseaseID: diseaseID, Err: err}
	}
	return resp, nil
}

func (s *HTTPSource) fetch(ctx context.Context, diseaseID int) (*Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "feed: rate limit")
	}

	reqURL := fmt.Sprintf("%s/api/disease-location/%d", s.baseURL, diseaseID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "feed: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "feed: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "feed: read body")
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "feed: parse response")
	}
	if out.Regions == nil {
		out.Regions = zone.Stats{}
	}
	for name, st := range out.Regions {
		if err := st.Validate(); err != nil {
			return nil, eris.Wrapf(err, "feed: region %q", name)
		}
		if st.Color == "" {
			st.Color = st.ZoneType.Color()
			out.Regions[name] = st
		}
	}
	return &out, nil
}
