// Package sentinel downloads Sentinel-2 L2A red and near-infrared bands for an
// area from the Copernicus Data Space Process API.
package sentinel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/forest-guardian/regen-insights/internal/cache"
)

const (
	DefaultProcessURL = "https://sh.dataspace.copernicus.eu/api/v1/process"
	// Sentinel-2 B04/B08 ground resolution in metres.
	resolution = 10
	maxPixels  = 2500
)

var (
	ErrUnauthorized  = errors.New("unauthorized access, check your client ID and secret")
	ErrNoCredentials = errors.New("missing Copernicus credentials")
)

// Two output bands, B04 then B08. Pixels outside the data mask are NaN so
// they arrive as no-data.
const evalscript = `
//VERSION=3
function setup() {
  return {
    input: ["B04", "B08", "dataMask"],
    output: {
      id: "default",
      bands: 2,
      sampleType: SampleType.FLOAT32,
    },
  }
}

function evaluatePixel(sample) {
  if (sample.dataMask == 0) {
    return [NaN, NaN];
  }
  return [sample.B04, sample.B08];
}
`

// Credential is one Copernicus OAuth client.
type Credential struct {
	ClientID     string
	ClientSecret string
}

// Client fetches red/NIR scenes. Credentials are tried in order; each is
// retried up to Retries times before moving to the next.
type Client struct {
	Credentials []Credential
	TokenURL    string
	ProcessURL  string
	Retries     int
	RetryWait   time.Duration
	Cache       cache.SceneCache
	Logger      *slog.Logger
}

func NewClient(creds []Credential, tokenURL string, c cache.SceneCache, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		Credentials: creds,
		TokenURL:    tokenURL,
		ProcessURL:  DefaultProcessURL,
		Retries:     10,
		RetryWait:   5 * time.Second,
		Cache:       c,
		Logger:      logger,
	}
}

func calculatePixels(distance float64, resolution float64) int {
	pixels := distance * (111_000.0 / resolution)
	if pixels < 1 {
		return 1
	}
	if pixels > maxPixels {
		return maxPixels
	}
	return int(pixels)
}

func buildRequest(geometry orb.Geometry, date time.Time) ([]byte, error) {
	// Single-day window in UTC.
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24*time.Hour - time.Second)

	bbox := geometry.Bound()
	widthPixels := calculatePixels(bbox.Max.X()-bbox.Min.X(), resolution)
	heightPixels := calculatePixels(bbox.Max.Y()-bbox.Min.Y(), resolution)

	requestPayload := map[string]interface{}{
		"input": map[string]interface{}{
			"bounds": map[string]interface{}{
				"geometry": geojson.NewGeometry(geometry),
			},
			"data": []map[string]interface{}{
				{
					"dataFilter": map[string]interface{}{
						"timeRange": map[string]string{
							"from": start.Format(time.RFC3339),
							"to":   end.Format(time.RFC3339),
						},
					},
					"type": "sentinel-2-l2a",
				},
			},
		},
		"output": map[string]interface{}{
			"width":  widthPixels,
			"height": heightPixels,
			"responses": []map[string]interface{}{
				{
					"identifier": "default",
					"format": map[string]string{
						"type": "image/tiff",
					},
				},
			},
		},
		"evalscript": evalscript,
		"mosaicking": "mostRecent",
	}

	body, err := json.Marshal(requestPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}
	return body, nil
}

// RequestImage returns the GeoTIFF bytes of the scene covering geometry on date.
func (c *Client) RequestImage(ctx context.Context, area string, geometry orb.Geometry, date time.Time) ([]byte, error) {
	if len(c.Credentials) == 0 || c.TokenURL == "" {
		return nil, ErrNoCredentials
	}

	cacheKey := cache.Key{Area: area, Date: date, Bound: geometry.Bound()}
	if c.Cache != nil {
		if data, ok := c.Cache.Get(cacheKey); ok {
			c.Logger.Debug("scene cache hit", "area", area, "date", date.Format("2006-01-02"))
			return data, nil
		}
	}

	requestBody, err := buildRequest(geometry, date)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for i, cred := range c.Credentials {
		data, err := c.requestWithCredential(ctx, cred, requestBody)
		if err == nil {
			if c.Cache != nil {
				if err := c.Cache.Set(cacheKey, data); err != nil {
					c.Logger.Warn("failed to cache scene", "area", area, "error", err)
				}
			}
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.Logger.Warn("credential failed", "credential", i+1, "error", err)
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) requestWithCredential(ctx context.Context, cred Credential, requestBody []byte) ([]byte, error) {
	config := &clientcredentials.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		TokenURL:     c.TokenURL,
	}
	httpClient := config.Client(ctx)

	retries := max(c.Retries, 1)
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		data, status, err := c.post(ctx, httpClient, requestBody)
		if err == nil && status == http.StatusOK {
			return data, nil
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, ErrUnauthorized
		}
		if err == nil {
			err = fmt.Errorf("status %d: %s", status, bytes.TrimSpace(data))
		}
		lastErr = err
		c.Logger.Info("process request failed", "attempt", attempt, "retries", retries, "error", err)

		if attempt == retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.RetryWait):
		}
	}
	return nil, fmt.Errorf("failed to request image after %d attempts: %w", retries, lastErr)
}

func (c *Client) post(ctx context.Context, httpClient *http.Client, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ProcessURL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/tiff")

	response, err := httpClient.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return nil, retrieveErr.Response.StatusCode, err
		}
		return nil, 0, err
	}
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, response.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, response.StatusCode, nil
}

// Download stores the scene under dir as <area>_<date>.tif and returns its
// path. area must be safe to use in a file name.
func (c *Client) Download(ctx context.Context, area string, geometry orb.Geometry, date time.Time, dir string) (string, error) {
	data, err := c.RequestImage(ctx, area, geometry, date)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.tif", area, date.Format("2006-01-02")))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	return path, nil
}
