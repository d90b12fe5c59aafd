// Package management implements the client for the management plane: asset
// tracking registration and configuration category access.
package management

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/christoofar/FogLAMP/internal/models"
)

const (
	requestTimeout = 10 * time.Second
	maxRetryTime   = 30 * time.Second
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

// NewClient builds a management client for baseURL. When tokenFile is
// non-empty the bearer token it contains is attached to every request; the
// token's expiry claim is inspected for an early warning, not verified.
func NewClient(baseURL string, tokenFile string) (*Client, error) {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        zap.S().Named("management"),
	}
	if tokenFile != "" {
		raw, err := os.ReadFile(tokenFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read token file: %w", err)
		}
		c.token = strings.TrimSpace(string(raw))
		c.warnOnExpiry()
	}
	return c, nil
}

func (c *Client) warnOnExpiry() {
	token, _, err := jwt.NewParser().ParseUnverified(c.token, jwt.MapClaims{})
	if err != nil {
		c.log.Warnw("management token is not a parseable JWT", "error", err)
		return
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}
	if time.Until(exp.Time) < time.Hour {
		c.log.Warnw("management token expires soon", "expires_at", exp.Time)
	}
}

// GetAssetTrackingTuples returns every tuple registered for the service.
// GET /foglamp/track?service={name}
func (c *Client) GetAssetTrackingTuples(ctx context.Context, serviceName string) ([]models.AssetTrackingTuple, error) {
	endpoint := c.baseURL + "/foglamp/track?service=" + url.QueryEscape(serviceName)
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Track []struct {
			Service string `json:"service"`
			Plugin  string `json:"plugin"`
			Asset   string `json:"asset"`
			Event   string `json:"event"`
		} `json:"track"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse asset tracking response: %w", err)
	}
	tuples := make([]models.AssetTrackingTuple, 0, len(doc.Track))
	for _, t := range doc.Track {
		tuples = append(tuples, models.NewAssetTrackingTuple(t.Service, t.Plugin, t.Asset, t.Event))
	}
	return tuples, nil
}

// AddAssetTrackingTuple registers one tuple.
// POST /foglamp/track
func (c *Client) AddAssetTrackingTuple(ctx context.Context, service, plugin, asset, event string) error {
	payload, err := json.Marshal(map[string]string{
		"service": service,
		"plugin":  plugin,
		"asset":   asset,
		"event":   event,
	})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, c.baseURL+"/foglamp/track", payload)
	return err
}

// GetCategory fetches a configuration category by name.
// GET /foglamp/service/category/{name}
func (c *Client) GetCategory(ctx context.Context, name string) (models.Category, error) {
	endpoint := c.baseURL + "/foglamp/service/category/" + url.PathEscape(name)
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Category{}, err
	}

	var category models.Category
	if err := json.Unmarshal(body, &category.Items); err != nil {
		return models.Category{}, fmt.Errorf("failed to parse category %q: %w", name, err)
	}
	category.Key = name
	return category, nil
}

// AddChildCategories registers children under the parent category.
// POST /foglamp/service/category/{parent}/children
func (c *Client) AddChildCategories(ctx context.Context, parent string, children []string) error {
	payload, err := json.Marshal(map[string][]string{"children": children})
	if err != nil {
		return err
	}
	endpoint := c.baseURL + "/foglamp/service/category/" + url.PathEscape(parent) + "/children"
	_, err = c.do(ctx, http.MethodPost, endpoint, payload)
	return err
}

// do issues one HTTP request with retries on transient failures. 4xx
// responses are permanent, everything else backs off exponentially up to
// maxRetryTime.
func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	operation := func() ([]byte, error) {
		var body *bytes.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		} else {
			body = bytes.NewReader(nil)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		var out bytes.Buffer
		if _, err := out.ReadFrom(resp.Body); err != nil {
			return nil, err
		}
		switch {
		case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
			return out.Bytes(), nil
		case resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError:
			return nil, backoff.Permanent(fmt.Errorf("%s %s: %s", method, endpoint, resp.Status))
		default:
			return nil, fmt.Errorf("%s %s: %s", method, endpoint, resp.Status)
		}
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxRetryTime))
	if err != nil {
		c.log.Errorw("management request failed", "method", method, "endpoint", endpoint, "error", err)
		return nil, err
	}
	return result, nil
}
