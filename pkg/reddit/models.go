package reddit

import (
	"encoding/json"
	"fmt"
	"strings"

	"friendbot/pkg/models"
)

// Listing is the envelope Reddit wraps collections in
type Listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Before   string  `json:"before"`
		Children []Thing `json:"children"`
	} `json:"data"`
}

// Thing is one child of a listing
type Thing struct {
	Kind string    `json:"kind"`
	Data ThingData `json:"data"`
}

// ThingData holds the fields shared by links (t3) and comments (t1) that the bot reads
type ThingData struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Permalink  string  `json:"permalink"`
	Subreddit  string  `json:"subreddit"`
	Author     string  `json:"author"`
	LinkID     string  `json:"link_id"`
	CreatedUTC float64 `json:"created_utc"`
}

// Submission converts a link to the shared model
func (t Thing) Submission() models.Submission {
	return models.Submission{
		ID:         t.Data.ID,
		Name:       t.Data.Name,
		Title:      t.Data.Title,
		URL:        t.Data.URL,
		Permalink:  PermalinkURL(t.Data.Permalink),
		Subreddit:  t.Data.Subreddit,
		Author:     t.Data.Author,
		CreatedUTC: t.Data.CreatedUTC,
	}
}

// AuthoredItem converts a comment or link to the shared model
func (t Thing) AuthoredItem() models.AuthoredItem {
	return models.AuthoredItem{
		Kind:   t.Kind,
		Name:   t.Data.Name,
		LinkID: t.Data.LinkID,
	}
}

// tokenResponse is returned by the access token endpoint
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
	Error       string `json:"error"`
}

// meResponse is the subset of /api/v1/me the bot reads
type meResponse struct {
	Name string `json:"name"`
}

// apiResponse is the api_type=json envelope used by write endpoints
type apiResponse struct {
	JSON struct {
		Errors []APIError      `json:"errors"`
		Data   json.RawMessage `json:"data"`
	} `json:"json"`
}

// APIError is one [code, message, field] triple from a write endpoint
type APIError struct {
	Code    string
	Message string
	Field   string
}

// UnmarshalJSON decodes the positional array form
func (e *APIError) UnmarshalJSON(data []byte) error {
	var parts []interface{}
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	get := func(i int) string {
		if i < len(parts) && parts[i] != nil {
			return fmt.Sprint(parts[i])
		}
		return ""
	}
	e.Code = get(0)
	e.Message = get(1)
	e.Field = get(2)
	return nil
}

func (e APIError) String() string {
	return strings.TrimSpace(fmt.Sprintf("%s: %s", e.Code, e.Message))
}
