package reddit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"friendbot/pkg/errors"
	"friendbot/pkg/logger"
	"friendbot/pkg/models"
	"friendbot/pkg/ratelimit"
	"friendbot/pkg/retry"
)

// Credentials identify the bot's script app and account
type Credentials struct {
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
}

// Options configures a Client
type Options struct {
	Credentials Credentials
	UserAgent   string
	AuthURL     string
	APIURL      string
	Timeout     time.Duration
	Limiter     ratelimit.Limiter
	HTTPClient  *http.Client
	Logger      logger.Logger
}

// SearchParams describes one subreddit search
type SearchParams struct {
	Subreddit string
	Query     string
	// Window is the time filter: hour, day, week, month, year or all
	Window string
	Limit  int
}

// Client represents a Reddit API client
type Client struct {
	httpClient *http.Client
	creds      Credentials
	userAgent  string
	authURL    string
	apiURL     string
	limiter    ratelimit.Limiter
	logger     logger.Logger
	tokenRetry *retry.Config

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	now         func() time.Time
}

// NewClient creates a new Reddit API client
func NewClient(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	authURL := opts.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	apiURL := opts.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "friendbot/1.0"
	}

	return &Client{
		httpClient: httpClient,
		creds:      opts.Credentials,
		userAgent:  userAgent,
		authURL:    strings.TrimRight(authURL, "/"),
		apiURL:     strings.TrimRight(apiURL, "/"),
		limiter:    limiter,
		logger:     log.WithField("component", "reddit"),
		tokenRetry: &retry.Config{
			MaxAttempts: 3,
			Backoff:     retry.DefaultExponentialBackoff(),
			RetryIf: func(err error) bool {
				return errors.IsType(err, errors.ErrorTypeNetwork) || errors.IsServerError(err)
			},
			Logger: log,
		},
		now: time.Now,
	}
}

// Search returns threads in a subreddit matching the query, newest first
func (c *Client) Search(ctx context.Context, params SearchParams) ([]models.Submission, error) {
	u := SearchURL(c.apiURL, params.Subreddit, params.Query, params.Window, params.Limit)

	var listing Listing
	if err := c.getJSON(ctx, u, &listing); err != nil {
		return nil, err
	}

	subs := make([]models.Submission, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		subs = append(subs, child.Submission())
	}

	c.logger.DebugWithFields("search completed", map[string]interface{}{
		"subreddit": params.Subreddit,
		"query":     params.Query,
		"results":   len(subs),
	})
	return subs, nil
}

// Me returns the name of the authenticated account
func (c *Client) Me(ctx context.Context) (string, error) {
	var me meResponse
	if err := c.getJSON(ctx, c.apiURL+MeEndpoint, &me); err != nil {
		return "", err
	}
	if me.Name == "" {
		return "", errors.New(errors.ErrorTypeParsing, http.StatusOK, "identity response without name")
	}
	return me.Name, nil
}

// RecentItems returns the account's newest comments and submissions
func (c *Client) RecentItems(ctx context.Context, limit int) ([]models.AuthoredItem, error) {
	username := c.creds.Username
	if username == "" {
		name, err := c.Me(ctx)
		if err != nil {
			return nil, err
		}
		username = name
	}

	var listing Listing
	if err := c.getJSON(ctx, OverviewURL(c.apiURL, username, limit), &listing); err != nil {
		return nil, err
	}

	items := make([]models.AuthoredItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		items = append(items, child.AuthoredItem())
	}
	return items, nil
}

// Reply posts a comment on the thing identified by its fullname
func (c *Client) Reply(ctx context.Context, thingID, text string) error {
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("thing_id", thingID)
	form.Set("text", text)

	body, err := c.postForm(ctx, c.apiURL+CommentEndpoint, form)
	if err != nil {
		return err
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return errors.New(errors.ErrorTypeParsing, http.StatusOK, "failed to parse reply response: %v", err)
	}

	for _, apiErr := range resp.JSON.Errors {
		if apiErr.Code == "RATELIMIT" {
			logger.LogRateLimit(c.logger, CommentEndpoint, 0)
			return errors.New(errors.ErrorTypeRateLimit, http.StatusOK, "%s", apiErr.String())
		}
	}
	if len(resp.JSON.Errors) > 0 {
		msgs := make([]string, len(resp.JSON.Errors))
		for i, e := range resp.JSON.Errors {
			msgs[i] = e.String()
		}
		return errors.New(errors.ErrorTypeUnknown, http.StatusOK, "reply rejected: %s", strings.Join(msgs, "; "))
	}

	c.logger.InfoWithFields("reply posted", map[string]interface{}{
		"thing_id": thingID,
	})
	return nil
}

// accessToken returns a cached bearer token, fetching a new one when it is about to expire
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.token, nil
	}

	tok, err := retry.DoWithResult(ctx, func() (*tokenResponse, error) {
		return c.requestToken(ctx)
	}, c.tokenRetry)
	if err != nil {
		return "", err
	}

	c.token = tok.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	c.logger.DebugWithFields("access token acquired", map[string]interface{}{
		"expires_in": tok.ExpiresIn,
		"scope":      tok.Scope,
	})
	return c.token, nil
}

// requestToken performs one password grant exchange
func (c *Client) requestToken(ctx context.Context) (*tokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.creds.Username)
	form.Set("password", c.creds.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.New(errors.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, errors.New(errors.ErrorTypeParsing, http.StatusOK, "failed to parse token response: %v", err)
	}
	if tok.Error != "" || tok.AccessToken == "" {
		return nil, errors.New(errors.ErrorTypeAuth, http.StatusOK, "token request rejected: %s", tok.Error)
	}
	return &tok, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) getJSON(ctx context.Context, u string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.New(errors.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}

	body, err := c.authorized(ctx, req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          u,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return errors.New(errors.ErrorTypeParsing, http.StatusOK, "failed to parse JSON: %v", err)
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, u string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.New(errors.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.authorized(ctx, req)
}

// authorized attaches the bearer token and drops it when the API rejects it
func (c *Client) authorized(ctx context.Context, req *http.Request) ([]byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "bearer "+token)

	body, err := c.send(ctx, req)
	if errors.IsType(err, errors.ErrorTypeAuth) {
		c.invalidateToken()
	}
	return body, err
}

// send waits for the limiter, performs the request and checks the status
func (c *Client) send(ctx context.Context, req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method": req.Method,
			"url":    req.URL.String(),
			"error":  err.Error(),
		})
		return nil, errors.New(errors.ErrorTypeNetwork, 0, "network error: %v", err)
	}
	defer resp.Body.Close()

	logger.LogRequest(c.logger, req.Method, req.URL.Path, resp.StatusCode, time.Since(start).Milliseconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}

	if err := checkResponseStatus(resp); err != nil {
		return nil, err
	}
	return body, nil
}

// checkResponseStatus maps HTTP status codes onto the error taxonomy
func checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	errType := errors.FromStatus(resp.StatusCode)
	switch errType {
	case errors.ErrorTypeRateLimit:
		return errors.New(errType, resp.StatusCode, "rate limit exceeded")
	case errors.ErrorTypeAuth:
		return errors.New(errType, resp.StatusCode, "authentication failed")
	case errors.ErrorTypeNotFound:
		return errors.New(errType, resp.StatusCode, "resource not found")
	case errors.ErrorTypeServerError:
		return errors.New(errType, resp.StatusCode, "server error")
	default:
		return errors.New(errType, resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
	}
}
