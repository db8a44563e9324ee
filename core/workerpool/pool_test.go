package workerpool

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const workerSentinel = "run-test-worker"

// TestMain doubles as the worker entrypoint: the pool re-invokes this test
// binary with a sentinel argument and speaks the protocol over its stdio.
func TestMain(m *testing.M) {
	if len(os.Args) > 1 && os.Args[len(os.Args)-1] == workerSentinel {
		runTestWorker()
		return
	}
	os.Exit(m.Run())
}

func runTestWorker() {
	srv := NewServer()
	srv.Handle("echo", func(ctx context.Context, payload json.RawMessage, log *JobLogger) (any, error) {
		log.Infof("echoing")
		var v map[string]any
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, err
		}
		return v, nil
	})
	srv.Handle("fail", func(context.Context, json.RawMessage, *JobLogger) (any, error) {
		return nil, errors.New("boom")
	})
	srv.Handle("hang", func(context.Context, json.RawMessage, *JobLogger) (any, error) {
		time.Sleep(30 * time.Second)
		return nil, nil
	})
	_ = srv.Serve(context.Background(), os.Stdin, os.Stdout)
}

func testPool(t *testing.T, cfg Config) *Pool {
	t.Helper()
	cfg.Command = []string{os.Args[0], workerSentinel}
	pool := New(cfg, zap.NewNop())
	t.Cleanup(pool.Stop)
	return pool
}

func TestPool_Roundtrip(t *testing.T) {
	pool := testPool(t, Config{Workers: 1})

	var mu sync.Mutex
	var logs []string
	onLog := func(level, message string) {
		mu.Lock()
		logs = append(logs, level+": "+message)
		mu.Unlock()
	}

	raw, err := pool.Do(context.Background(), "echo", map[string]any{"n": float64(7)}, onLog)
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, float64(7), result["n"])

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, logs, 1)
	assert.Equal(t, "info: echoing", logs[0])
}

func TestPool_RemoteErrorKeepsWorkerAlive(t *testing.T) {
	pool := testPool(t, Config{Workers: 1})

	_, err := pool.Do(context.Background(), "fail", nil, nil)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "boom", remote.Msg)

	// The same worker serves the next job.
	_, err = pool.Do(context.Background(), "echo", map[string]any{}, nil)
	assert.NoError(t, err)
}

func TestPool_JobTimeoutReplacesWorker(t *testing.T) {
	pool := testPool(t, Config{Workers: 1, JobTimeoutSeconds: 1})

	start := time.Now()
	_, err := pool.Do(context.Background(), "hang", nil, nil)
	require.ErrorIs(t, err, ErrWorkerUnavailable)
	assert.Less(t, time.Since(start), 10*time.Second)

	// A fresh worker is spawned for the next job.
	_, err = pool.Do(context.Background(), "echo", map[string]any{}, nil)
	assert.NoError(t, err)
}

func TestPool_StopRejectsNewJobs(t *testing.T) {
	pool := testPool(t, Config{Workers: 1})

	_, err := pool.Do(context.Background(), "echo", map[string]any{}, nil)
	require.NoError(t, err)

	pool.Stop()

	_, err = pool.Do(context.Background(), "echo", map[string]any{}, nil)
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_CanceledContextAbandonsJob(t *testing.T) {
	pool := testPool(t, Config{Workers: 1, JobTimeoutSeconds: 60})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := pool.Do(ctx, "hang", nil, nil)
	require.ErrorIs(t, err, ErrWorkerUnavailable)
}
