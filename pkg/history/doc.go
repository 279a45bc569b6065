/*
Package history persists summaries of finished pipeline runs so a
dictation service can answer "what did I say earlier" and feed its
status endpoints.

# Stores

Two Store implementations ship with the package. MemoryStore keeps a
bounded in-process list and is the default for single-machine use.
RedisStore keeps records in a Redis hash with a sorted-set index over
completion time, which survives restarts and can be shared between
instances.

	store := history.NewMemoryStore(500)
	rec := history.NewRecord(result).WithText(text)
	if err := store.Save(ctx, rec); err != nil {
		log.Printf("history save failed: %v", err)
	}

# Retention

Both stores support count-based retention through Prune. The Sweeper
runs Prune on a cron schedule:

	sweeper, err := history.NewSweeper(history.SweeperConfig{
		Store:    store,
		Keep:     500,
		Schedule: "@hourly",
	})
	if err != nil {
		log.Fatal(err)
	}
	sweeper.Start()
	defer sweeper.Stop()

# Instrumentation

InstrumentStore wraps any Store with Prometheus counters for saves,
save failures and pruned records:

	store = history.InstrumentStore(store, "memory", metrics.DefaultRegistry)
*/
package history
