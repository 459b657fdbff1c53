// Package coinmetrics provides a client for the CoinMetrics v4 REST API,
// limited to the catalog and timeseries endpoints the collector needs.
package coinmetrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/rs/zerolog"

	"coinmetrics-collector/internal/errors"
	"coinmetrics-collector/internal/logging"
	"coinmetrics-collector/pkg/utils"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.coinmetrics.io/v4"

// Client is a CoinMetrics API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retryCfg   utils.RetryConfig
	logger     zerolog.Logger
}

// ClientConfig holds configuration for the client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	Logger     zerolog.Logger
}

// NewClient creates a new CoinMetrics API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.ErrMissingAPIKey
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	retryCfg := utils.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.MaxRetries
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		retryCfg:   retryCfg,
		logger:     cfg.Logger,
	}, nil
}

// envelope is the common response wrapper for list endpoints.
type envelope struct {
	Data          json.RawMessage `json:"data"`
	NextPageToken string          `json:"next_page_token"`
}

// apiErrorBody is the error payload returned on non-2xx responses.
type apiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// getPage performs a single GET against path with params encoded as query
// parameters, retrying rate-limit and server errors with backoff.
func (c *Client) getPage(ctx context.Context, path string, params interface{}) (*envelope, error) {
	values, err := query.Values(params)
	if err != nil {
		return nil, errors.Wrap(err, "encoding query parameters")
	}
	values.Set("api_key", c.apiKey)

	reqURL := c.baseURL + path + "?" + values.Encode()

	return utils.RetryWithResult(ctx, c.retryCfg, func() (*envelope, error) {
		env, err := c.doGet(ctx, reqURL, path)
		if err != nil {
			var apiErr *errors.APIError
			if errors.As(err, &apiErr) && !apiErr.Retryable() {
				// Client errors won't improve on retry.
				return nil, utils.Permanent(err)
			}
			return nil, err
		}
		return env, nil
	})
}

func (c *Client) doGet(ctx context.Context, reqURL, path string) (*envelope, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	logging.LogAPICall(c.logger, http.MethodGet, path, time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConnectionFailed, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}

	if resp.StatusCode != http.StatusOK {
		var errBody apiErrorBody
		_ = json.Unmarshal(body, &errBody)
		message := errBody.Error.Message
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, errors.NewAPIError(resp.StatusCode, errBody.Error.Type, message, nil)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrapf(err, "decoding response from %s", path)
	}
	return &env, nil
}

// collectPages fetches every page of path, appending each page's raw data
// to the decode callback until the API stops returning a page token.
func (c *Client) collectPages(ctx context.Context, path string, params pager, decode func(json.RawMessage) error) error {
	for {
		env, err := c.getPage(ctx, path, params)
		if err != nil {
			return err
		}
		if err := decode(env.Data); err != nil {
			return err
		}
		if env.NextPageToken == "" {
			return nil
		}
		params.setPageToken(env.NextPageToken)
	}
}

// pager is implemented by parameter structs that support pagination.
type pager interface {
	setPageToken(token string)
}

// endpointPath joins the API section and the data type.
func endpointPath(section, dataType string) string {
	return fmt.Sprintf("/%s/%s", section, url.PathEscape(dataType))
}
