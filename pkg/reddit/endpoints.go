package reddit

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultAuthURL hosts the token endpoint
	DefaultAuthURL = "https://www.reddit.com"

	// DefaultAPIURL hosts every authenticated endpoint
	DefaultAPIURL = "https://oauth.reddit.com"

	TokenEndpoint   = "/api/v1/access_token"
	MeEndpoint      = "/api/v1/me"
	CommentEndpoint = "/api/comment"

	// DefaultSearchLimit is the number of threads requested per search
	DefaultSearchLimit = 25

	// MaxListingLimit is the largest page Reddit returns
	MaxListingLimit = 100
)

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxListingLimit {
		return MaxListingLimit
	}
	return limit
}

// SearchURL builds a subreddit search restricted to the subreddit, newest first
func SearchURL(apiURL, subreddit, query, window string, limit int) string {
	if window == "" {
		window = "day"
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("restrict_sr", "on")
	params.Set("sort", "new")
	params.Set("t", window)
	params.Set("limit", strconv.Itoa(clampLimit(limit, DefaultSearchLimit)))
	params.Set("raw_json", "1")

	return fmt.Sprintf("%s/r/%s/search?%s", strings.TrimRight(apiURL, "/"), url.PathEscape(subreddit), params.Encode())
}

// OverviewURL builds the listing of a user's newest comments and submissions
func OverviewURL(apiURL, username string, limit int) string {
	params := url.Values{}
	params.Set("sort", "new")
	params.Set("limit", strconv.Itoa(clampLimit(limit, 10)))
	params.Set("raw_json", "1")

	return fmt.Sprintf("%s/user/%s/overview?%s", strings.TrimRight(apiURL, "/"), url.PathEscape(username), params.Encode())
}

// PermalinkURL returns the browser URL of a thread
func PermalinkURL(permalink string) string {
	if permalink == "" {
		return ""
	}
	if strings.HasPrefix(permalink, "http") {
		return permalink
	}
	return "https://www.reddit.com" + permalink
}
