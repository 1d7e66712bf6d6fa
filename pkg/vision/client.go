// Package vision calls the Google Cloud Vision text detection API.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"friendbot/pkg/errors"
	"friendbot/pkg/logger"
	"friendbot/pkg/ratelimit"
)

const (
	// DefaultEndpoint is the public Vision API host
	DefaultEndpoint = "https://vision.googleapis.com"

	annotatePath = "/v1/images:annotate"
)

// Client represents a Vision API client
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewClient creates a Vision client authenticated by an API key
func NewClient(endpoint, apiKey string, timeout time.Duration, limiter ratelimit.Limiter, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		limiter:    limiter,
		logger:     log.WithField("component", "vision"),
	}
}

type annotateRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image    image     `json:"image"`
	Features []feature `json:"features"`
}

type image struct {
	Content string `json:"content"`
}

type feature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type annotateResponse struct {
	Responses []imageResponse `json:"responses"`
}

type imageResponse struct {
	FullTextAnnotation *struct {
		Text string `json:"text"`
	} `json:"fullTextAnnotation"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// RecognizeText runs text detection on one image. found is false when the
// image contains no recognisable text.
func (c *Client) RecognizeText(ctx context.Context, img []byte) (string, bool, error) {
	payload, err := json.Marshal(annotateRequest{
		Requests: []imageRequest{{
			Image:    image{Content: base64.StdEncoding.EncodeToString(img)},
			Features: []feature{{Type: "TEXT_DETECTION", MaxResults: 1}},
		}},
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to encode annotate request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", false, err
	}

	u := c.endpoint + annotatePath + "?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return "", false, errors.New(errors.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, errors.New(errors.ErrorTypeNetwork, 0, "network error: %v", err)
	}
	defer resp.Body.Close()

	logger.LogRequest(c.logger, req.Method, annotatePath, resp.StatusCode, time.Since(start).Milliseconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, errors.New(errors.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}
	if resp.StatusCode >= 400 {
		return "", false, errors.New(errors.FromStatus(resp.StatusCode), resp.StatusCode, "annotate failed: %s", preview(body))
	}

	var parsed annotateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, errors.New(errors.ErrorTypeParsing, resp.StatusCode, "failed to parse annotate response: %v", err)
	}
	if len(parsed.Responses) == 0 {
		c.logger.WarnWithFields("no text found", map[string]interface{}{"response": preview(body)})
		return "", false, nil
	}

	r := parsed.Responses[0]
	if r.Error != nil {
		return "", false, errors.New(errors.ErrorTypeUnknown, r.Error.Code, "annotate error: %s", r.Error.Message)
	}
	if r.FullTextAnnotation == nil {
		c.logger.WarnWithFields("no text found", map[string]interface{}{"response": preview(body)})
		return "", false, nil
	}

	return r.FullTextAnnotation.Text, true, nil
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 500 {
		s = s[:500] + "..."
	}
	return s
}
