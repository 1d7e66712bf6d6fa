// Package discovery finds new chapter discussion threads and drives each one
// through fetch, count, persist and reply.
//
// A Job describes one source: the subreddit to search, the search query and
// the marker a title must contain. Jobs are run by an Engine, which owns the
// chapter state for the lifetime of the process. RunJob is safe to call from
// several goroutines but executes one job at a time.
//
// A thread is handled only when its chapter has not been counted yet, the
// reply ledger has no entry for it and none of the account's recent items
// belong to it. Fetch and count failures abort the cycle before anything is
// persisted, so the next tick starts the chapter from scratch.
package discovery
