// Package reddit is a small client for the parts of the Reddit API the bot needs.
//
// It authenticates with the OAuth password grant of a script app, searches a
// subreddit for recent threads, lists the account's own recent items and posts
// comment replies. HTTP failures are returned as *errors.Error values so callers
// can tell a rate limit (HTTP 429 or a RATELIMIT API error) from a transient
// server error.
//
//	client := reddit.NewClient(reddit.Options{
//	    Credentials: reddit.Credentials{Username: "bot", Password: pw, ClientID: id, ClientSecret: secret},
//	    UserAgent:   "friendbot/1.0",
//	})
//	subs, err := client.Search(ctx, reddit.SearchParams{Subreddit: "manga", Query: "Eden's Zero"})
package reddit
