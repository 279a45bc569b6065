package history_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/symphovais/voicepipe/pkg/history"
	"github.com/symphovais/voicepipe/pkg/pipeline"
)

// Example_basicUsage demonstrates saving and querying run history.
func Example_basicUsage() {
	store := history.NewMemoryStore(100)
	defer func() { _ = store.Close() }()

	stage := pipeline.NewFunc("note", func(ctx context.Context, run *pipeline.Context) pipeline.StageResult {
		return pipeline.Success()
	})

	run := pipeline.NewContext().SetRunID("run-1")
	result, err := pipeline.New(stage).Execute(context.Background(), run)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Save(ctx, history.NewRecord(result).WithText("hello world")); err != nil {
		log.Fatal(err)
	}

	rec, err := store.Get(ctx, "run-1")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("run %s success=%v text=%q\n", rec.RunID, rec.IsSuccess, rec.Text)

	recent, _ := store.Recent(ctx, 10)
	fmt.Printf("records: %d\n", len(recent))

	// Output:
	// run run-1 success=true text="hello world"
	// records: 1
}

// Example_redisStore demonstrates the Redis-backed store. It needs a
// running Redis instance.
func Example_redisStore() {
	rdb := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1,
	})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		fmt.Println("Redis not available, skipping example")
		return
	}

	store, err := history.NewRedisStore(history.RedisConfig{
		Redis:  rdb,
		Prefix: "example:history",
		TTL:    time.Hour,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = store.Close() }()

	rec := history.Record{
		RunID:     "example-run",
		IsSuccess: true,
		StartTime: time.Now().Add(-2 * time.Second),
		EndTime:   time.Now(),
	}
	if err := store.Save(ctx, rec); err != nil {
		log.Fatal(err)
	}

	got, err := store.Get(ctx, "example-run")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("stored run %s\n", got.RunID)

	removed, _ := store.Prune(ctx, 100)
	fmt.Printf("pruned %d records\n", removed)
}
