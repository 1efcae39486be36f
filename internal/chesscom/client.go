// Package chesscom reads a player's monthly game archives from the
// chess.com public API.
package chesscom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/discochess/hindsight/internal/archive"
	"github.com/discochess/hindsight/internal/stats"
)

const (
	// DefaultBaseURL is the public player endpoint.
	DefaultBaseURL = "https://api.chess.com/pub/player"

	// DefaultUserAgent identifies the client to the API.
	DefaultUserAgent = "hindsight/1.0 (+https://github.com/discochess/hindsight)"

	// DefaultAttempts is the number of tries per request.
	DefaultAttempts = 3

	// DefaultRetryDelay is the pause between tries.
	DefaultRetryDelay = 1500 * time.Millisecond

	// DefaultRate is the steady request rate per second.
	DefaultRate = 2.0
)

var (
	// ErrNotFound is returned for unknown players or months.
	ErrNotFound = errors.New("chesscom: not found")

	// ErrUnexpectedStatus is returned for non-retryable HTTP failures.
	ErrUnexpectedStatus = errors.New("chesscom: unexpected status")

	// ErrNoUsername is returned when a request names no player.
	ErrNoUsername = errors.New("chesscom: username is required")
)

// Player is one side of a game as reported by the API.
type Player struct {
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Result   string `json:"result"`
}

// Game is one finished game from a monthly archive.
type Game struct {
	URL         string `json:"url"`
	PGN         string `json:"pgn"`
	TimeControl string `json:"time_control"`
	TimeClass   string `json:"time_class"`
	Rules       string `json:"rules"`
	Rated       bool   `json:"rated"`
	EndTime     int64  `json:"end_time"`
	White       Player `json:"white"`
	Black       Player `json:"black"`
}

// Ended returns the game's end time, or the zero time when unknown.
func (g Game) Ended() time.Time {
	if g.EndTime == 0 {
		return time.Time{}
	}
	return time.Unix(g.EndTime, 0).UTC()
}

// Sides returns the named player's side and the opponent's. ok is false
// when username played neither side.
func (g Game) Sides(username string) (me, opponent Player, ok bool) {
	switch {
	case strings.EqualFold(g.White.Username, username):
		return g.White, g.Black, true
	case strings.EqualFold(g.Black.Username, username):
		return g.Black, g.White, true
	}
	return Player{}, Player{}, false
}

// Client talks to the API with rate limiting and retries.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
	attempts  int
	delay     time.Duration
	stats     stats.Collector
	logger    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRateLimit sets the steady request rate. Zero or less disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetry sets the number of tries per request and the pause between them.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = max(attempts, 1)
		c.delay = delay
	}
}

// WithStats sets the metrics collector.
func WithStats(s stats.Collector) Option {
	return func(c *Client) {
		if s != nil {
			c.stats = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client with the public API defaults.
func New(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: 30 * time.Second},
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		limiter:   rate.NewLimiter(rate.Limit(DefaultRate), 1),
		attempts:  DefaultAttempts,
		delay:     DefaultRetryDelay,
		stats:     stats.NewNoop(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Archives lists the months for which username has games, oldest first.
func (c *Client) Archives(ctx context.Context, username string) ([]archive.Month, error) {
	if username == "" {
		return nil, ErrNoUsername
	}
	var body struct {
		Archives []string `json:"archives"`
	}
	if err := c.getJSON(ctx, c.playerURL(username, "games/archives"), &body); err != nil {
		return nil, fmt.Errorf("listing archives for %s: %w", username, err)
	}

	months := make([]archive.Month, 0, len(body.Archives))
	for _, u := range body.Archives {
		m, err := monthFromURL(u)
		if err != nil {
			c.logger.Warn("skipping unrecognized archive URL", zap.String("url", u))
			continue
		}
		months = append(months, m)
	}
	return months, nil
}

// Games returns the games username finished in month m.
func (c *Client) Games(ctx context.Context, username string, m archive.Month) ([]Game, error) {
	if username == "" {
		return nil, ErrNoUsername
	}
	var body struct {
		Games []Game `json:"games"`
	}
	path := fmt.Sprintf("games/%04d/%02d", m.Year, int(m.Month))
	if err := c.getJSON(ctx, c.playerURL(username, path), &body); err != nil {
		return nil, fmt.Errorf("fetching %s games for %s: %w", m, username, err)
	}
	return body.Games, nil
}

func (c *Client) playerURL(username, path string) string {
	return c.baseURL + "/" + strings.ToLower(username) + "/" + path
}

// monthFromURL parses the trailing ".../YYYY/MM" of an archive URL.
func monthFromURL(u string) (archive.Month, error) {
	parts := strings.Split(strings.TrimSuffix(u, "/"), "/")
	if len(parts) < 2 {
		return archive.Month{}, fmt.Errorf("%w: %q", archive.ErrInvalidMonth, u)
	}
	return archive.ParseMonth(parts[len(parts)-2] + "-" + parts[len(parts)-1])
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			t := time.NewTimer(c.delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		data, retry, err := c.get(ctx, url)
		if err == nil {
			if err := json.Unmarshal(data, v); err != nil {
				return fmt.Errorf("decoding %s: %w", url, err)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		if !retry {
			return err
		}
		c.logger.Warn("request failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return fmt.Errorf("giving up after %d attempts: %w", c.attempts, lastErr)
}

// get performs one request. retry reports whether a failure is transient.
func (c *Client) get(ctx context.Context, url string) (data []byte, retry bool, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	c.stats.IncCounter(stats.MetricAPIRequests, 1)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("requesting %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	default:
		return nil, false, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("reading response: %w", err)
	}
	return data, false, nil
}
