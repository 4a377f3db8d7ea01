// Package robot is an HTTP client for the robot-control backend.
package robot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultRate    = 10 // requests per second

	emptySuccess = "Success!"
	maxBody      = 1 << 20
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Robot is not running as expected. Error: %s", e.Body)
}

// Client talks to one robot backend. Requests are paced by a token bucket.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRate sets the request pace; r <= 0 disables pacing.
func WithRate(r float64) Option {
	return func(c *Client) {
		if r <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(r), 1)
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(DefaultRate), 1),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping checks that the backend answers the started probe.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodGet, "/state/started", nil, nil); err != nil {
		return fmt.Errorf("failed to connect to the robot at %s: %w", c.baseURL, err)
	}
	return nil
}

func (c *Client) Started(ctx context.Context) (bool, error) {
	body, err := c.do(ctx, http.MethodGet, "/state/started", nil, nil)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(body) == "true", nil
}

func (c *Client) Start(ctx context.Context) (string, error) {
	return c.result(c.do(ctx, http.MethodPut, "/state/start", nil, StartPose))
}

func (c *Client) Stop(ctx context.Context) (string, error) {
	return c.result(c.do(ctx, http.MethodPut, "/state/stop", nil, nil))
}

func (c *Client) GetPose(ctx context.Context) (Pose, error) {
	body, err := c.do(ctx, http.MethodGet, "/eef/pose", nil, nil)
	if err != nil {
		return Pose{}, err
	}
	var p Pose
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return Pose{}, fmt.Errorf("decode pose: %w", err)
	}
	return p, nil
}

func (c *Client) MoveTo(ctx context.Context, pose Pose, moveType MoveType, opts MoveOptions) (string, error) {
	q := url.Values{}
	q.Set("moveType", string(moveType))
	if opts.Velocity != nil {
		q.Set("velocity", formatFloat(*opts.Velocity))
	}
	if opts.Acceleration != nil {
		q.Set("acceleration", formatFloat(*opts.Acceleration))
	}
	if opts.Safe != nil {
		q.Set("safe", strconv.FormatBool(*opts.Safe))
	}
	return c.result(c.do(ctx, http.MethodPut, "/eef/pose", q, pose))
}

// Home calibrates the robot and moves it to its home position.
func (c *Client) Home(ctx context.Context) (string, error) {
	return c.result(c.do(ctx, http.MethodPut, "/home", nil, nil))
}

// Suck turns the vacuum gripper on.
func (c *Client) Suck(ctx context.Context) (string, error) {
	return c.result(c.do(ctx, http.MethodPut, "/suck", nil, nil))
}

// Release turns the vacuum gripper off.
func (c *Client) Release(ctx context.Context) (string, error) {
	return c.result(c.do(ctx, http.MethodPut, "/release", nil, nil))
}

func (c *Client) BeltSpeed(ctx context.Context, direction string, velocity float64) (string, error) {
	q := url.Values{}
	q.Set("velocity", formatFloat(velocity))
	q.Set("direction", direction)
	return c.result(c.do(ctx, http.MethodPut, "/conveyor/speed", q, nil))
}

func (c *Client) BeltDistance(ctx context.Context, direction string, velocity, distance float64) (string, error) {
	q := url.Values{}
	q.Set("velocity", formatFloat(velocity))
	q.Set("direction", direction)
	q.Set("distance", formatFloat(distance))
	return c.result(c.do(ctx, http.MethodPut, "/conveyor/distance", q, nil))
}

func (c *Client) result(body string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if body == "" {
		return emptySuccess, nil
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("robot request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(data)}
	}
	return string(data), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
