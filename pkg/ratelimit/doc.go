// Package ratelimit keeps outgoing collaborator calls under a request budget.
//
// The Reddit client sits behind a TokenBucket sized from
// rate_limit.requests_per_minute, and OCR calls go through a SlidingWindow so a
// large chapter cannot burst past the Vision quota.
//
//	limiter := ratelimit.NewTokenBucket(60, time.Minute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
