// Package logger provides the structured logging interface used across the bot.
//
// It wraps zerolog with a small Logger interface so collaborators can be given a
// scoped logger (WithField/WithFields) and tests can swap in NewTestLogger to
// assert on emitted messages.
//
//	logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("source", "manga")
//	log.InfoWithFields("Chapter counted", map[string]interface{}{
//	    "chapter": 102,
//	    "count":   7,
//	})
//
// All failures of a discovery cycle surface through this package; there is no
// other error channel.
package logger
