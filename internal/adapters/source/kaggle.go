package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/standings/internal/domain/model"
)

// Kaggle client defaults.
const (
	DefaultKaggleBaseURL = "https://www.kaggle.com/api/v1"
	defaultKaggleTimeout = 30 * time.Second
	defaultKaggleRate    = 1.0
	defaultKaggleBurst   = 2
	maxResponseBytes     = 16 << 20
)

// KaggleClient loads competition leaderboards from the Kaggle REST API.
type KaggleClient struct {
	baseURL  string
	username string
	key      string
	http     *http.Client
	limiter  *rate.Limiter
}

// KaggleOption configures a KaggleClient.
type KaggleOption func(*KaggleClient)

// WithBaseURL points the client at another API root (tests, proxies).
func WithBaseURL(u string) KaggleOption {
	return func(c *KaggleClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) KaggleOption {
	return func(c *KaggleClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit caps outgoing requests per second, with burst.
func WithRateLimit(perSecond float64, burst int) KaggleOption {
	return func(c *KaggleClient) {
		if perSecond > 0 {
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// NewKaggleClient creates a client authenticating with username and API key.
func NewKaggleClient(username, key string, opts ...KaggleOption) *KaggleClient {
	c := &KaggleClient{
		baseURL:  DefaultKaggleBaseURL,
		username: username,
		key:      key,
		http:     &http.Client{Timeout: defaultKaggleTimeout},
		limiter:  rate.NewLimiter(rate.Limit(defaultKaggleRate), defaultKaggleBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load implements Loader for a competition slug.
func (c *KaggleClient) Load(ctx context.Context, name string) ([]model.Row, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit: %w", ErrFetch, err)
	}

	endpoint := c.baseURL + "/competitions/" + url.PathEscape(name) + "/leaderboard/view"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	req.SetBasicAuth(c.username, c.key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrFetch, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrFetch, name, resp.StatusCode)
	}
	return DecodeLeaderboard(body)
}

// kaggleEntry is one submission as returned by the API.
type kaggleEntry struct {
	TeamID         flexString `json:"teamId"`
	TeamName       string     `json:"teamName"`
	SubmissionDate string     `json:"submissionDate"`
	Score          flexFloat  `json:"score"`
}

// DecodeLeaderboard accepts every response shape the API has used:
// {"submissions": [...]}, {"entries": [...]} and a bare array.
func DecodeLeaderboard(body []byte) ([]model.Row, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrParse)
	}

	var entries []kaggleEntry
	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}
		list, ok := envelope["submissions"]
		if !ok {
			list, ok = envelope["entries"]
		}
		if !ok {
			return nil, fmt.Errorf("%w: no submissions or entries in response", ErrParse)
		}
		if err := json.Unmarshal(list, &entries); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}
	default:
		return nil, fmt.Errorf("%w: unexpected response", ErrParse)
	}

	rows := make([]model.Row, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimSpace(e.TeamName)
		if name == "" || !e.Score.valid {
			continue
		}
		row := model.Row{
			TeamID:         string(e.TeamID),
			TeamName:       name,
			RawScore:       e.Score.value,
			SubmissionDate: parseDate(e.SubmissionDate),
		}
		if row.TeamID == "" {
			row.TeamID = SyntheticTeamID(name)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// flexString decodes a JSON string or number into its text form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexFloat decodes a JSON number or numeric string. Anything else leaves
// it invalid instead of failing the whole response.
type flexFloat struct {
	value float64
	valid bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	v, ok := parseScore(s)
	if !ok {
		*f = flexFloat{}
		return nil
	}
	*f = flexFloat{value: v, valid: true}
	return nil
}
