/*
Package bot wires the chapter counting pipeline together and schedules it.

New builds every collaborator from a config.Config: the Reddit and Vision
clients with their rate limiters, chapter storage, the fetcher, the OCR
counter, the persisted chapter state, the reply log and the reporter. A
malformed state file makes New fail; the bot does not start on corrupt state.

Run executes every job once at startup and then once per interval until the
context is cancelled. A single worker goroutine drains due jobs, so two jobs
never run at the same time. Job failures are logged and the job is retried on
its next tick.

	b, err := bot.New(cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	return b.Run(ctx)

RunOnce runs each job a single time and returns the combined errors, which is
what the scan command uses.
*/
package bot
