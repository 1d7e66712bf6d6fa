package models

import "fmt"

// ChapterRecord is the persisted word count for one chapter
type ChapterRecord struct {
	Chapter int `json:"chapter"`
	Count   int `json:"count"`
}

// Submission is a forum thread returned by a search
type Submission struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Permalink  string  `json:"permalink"`
	Subreddit  string  `json:"subreddit"`
	Author     string  `json:"author"`
	CreatedUTC float64 `json:"created_utc"`
}

// Fullname returns the t3_ prefixed identifier of the submission
func (s Submission) Fullname() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("t3_%s", s.ID)
}

// AuthoredItem is a recent comment or submission made by the bot account
type AuthoredItem struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	LinkID string `json:"link_id"`
}

// Matches reports whether the item is the submission itself or a comment on it
func (a AuthoredItem) Matches(sub Submission) bool {
	fullname := sub.Fullname()
	return a.Name == fullname || (a.LinkID != "" && a.LinkID == fullname)
}

// Page is one extracted chapter image on local storage
type Page struct {
	Chapter int
	Name    string
	Path    string
}
