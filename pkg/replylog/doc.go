// Package replylog records which discussion threads the bot has already replied to.
//
// Entries live in a bbolt bucket keyed by submission fullname, so a restart does
// not depend on the live "recent own items" window to avoid double posting.
package replylog
