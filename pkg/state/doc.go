// Package state persists the chapter word counts.
//
// The file holds one "<chapter> <count>" pair per line, sorted by chapter. It is
// loaded once at startup into a Chapters value that the discovery jobs share,
// and rewritten in full whenever a new chapter is recorded. A malformed line is
// a ParseError and is fatal to startup.
package state
