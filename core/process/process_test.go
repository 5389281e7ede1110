package process

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/searchktools/hive/core/eventloop"
	"github.com/searchktools/hive/core/router"
)

func TestReplayOrder(t *testing.T) {
	e := newRecordingEngine()
	require.NoError(t, Replay(e, buildTables()))

	assert.Equal(t, []string{
		"dir /assets",
		"reqheader X-Req",
		"resheader X-Res",
		"resheader Server",
		"route GET /ping",
		"route POST /items/:id",
		"route GET /static",
		"middleware BEFORE_REQUEST /items/:id",
		"middleware AFTER_REQUEST /ping",
		"startup",
		"shutdown",
		"websocket /ws/a",
		"websocket /ws/b",
	}, e.Calls())
}

func TestReplayError(t *testing.T) {
	e := newRecordingEngine()
	e.failOn = "route POST /items/:id"

	err := Replay(e, buildTables())

	var re *ReplayError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "routes", re.Table)
	assert.Equal(t, 1, re.Index)
	assert.NotContains(t, e.Calls(), "route GET /static")
}

func TestReplayEmptyTables(t *testing.T) {
	e := newRecordingEngine()
	require.NoError(t, Replay(e, Tables{}))
	assert.Empty(t, e.Calls())
}

func TestManifestRoundTrip(t *testing.T) {
	m := NewManifest(buildTables(), 4, "poll")
	m.WorkerID = "w-1"

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)

	got, err := ReadManifest(&buf)
	require.NoError(t, err)
	assert.Equal(t, m, got)
	assert.Len(t, got.Routes, 3)
	assert.Equal(t, []string{"/ws/a", "/ws/b"}, []string{got.WebSockets[0].Endpoint, got.WebSockets[1].Endpoint})
}

func TestManifestVerify(t *testing.T) {
	m := NewManifest(buildTables(), 2, "std")
	require.NoError(t, m.Verify(buildTables()))

	t.Run("missing route", func(t *testing.T) {
		local := buildTables()
		local.Routes = local.Routes[:2]

		err := m.Verify(local)
		assert.ErrorIs(t, err, ErrManifestMismatch)
		var re *ReplayError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "routes", re.Table)
		assert.Equal(t, -1, re.Index)
	})

	t.Run("reordered middleware", func(t *testing.T) {
		local := buildTables()
		local.Middlewares[0], local.Middlewares[1] = local.Middlewares[1], local.Middlewares[0]

		err := m.Verify(local)
		var re *ReplayError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "middlewares", re.Table)
		assert.Equal(t, 0, re.Index)
	})

	t.Run("missing shutdown", func(t *testing.T) {
		local := buildTables()
		local.Shutdown = nil
		assert.ErrorIs(t, m.Verify(local), ErrManifestMismatch)
	})
}

func TestManifestApply(t *testing.T) {
	m := NewManifest(buildTables(), 1, "std")
	m.ResponseHeaders = []router.Header{{Name: "X-From", Value: "parent"}}

	local := buildTables()
	applied := m.Apply(local)

	assert.Equal(t, m.ResponseHeaders, applied.ResponseHeaders)
	assert.Equal(t, m.Directories, applied.Directories)
	assert.Len(t, applied.Routes, len(local.Routes))
	assert.Len(t, local.ResponseHeaders, 2)
}

func TestSocket(t *testing.T) {
	s, err := Bind("127.0.0.1", 0)
	require.NoError(t, err)
	defer s.Close()

	assert.Positive(t, s.Port())

	f, err := s.TryClone()
	require.NoError(t, err)
	inherited, err := FromFile(f)
	require.NoError(t, err)
	f.Close()
	defer inherited.Close()
	assert.Equal(t, s.Addr(), inherited.Addr())

	_, err = Bind("127.0.0.1", s.Port())
	var be *BindError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, s.Addr(), be.Addr)
}

func TestWorkerStateString(t *testing.T) {
	assert.Equal(t, "unstarted", Unstarted.String())
	assert.Equal(t, "table_replayed", TableReplayed.String())
	assert.Equal(t, "listening", Listening.String())
	assert.Equal(t, "terminated", Terminated.String())
}

func TestServeLifecycle(t *testing.T) {
	s, err := Bind("127.0.0.1", 0)
	require.NoError(t, err)
	defer s.Close()
	f, err := s.TryClone()
	require.NoError(t, err)
	defer f.Close()

	var (
		mu     sync.Mutex
		states []WorkerState
	)
	listening := make(chan struct{})
	engines := make(chan *recordingEngine, 1)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- Serve(ctx, f, buildTables(), WorkerOptions{
			Workers:   2,
			EventLoop: eventloop.KindStd,
			Factory:   recordingFactory(engines),
			Logger:    zaptest.NewLogger(t),
			OnState: func(st WorkerState) {
				mu.Lock()
				states = append(states, st)
				mu.Unlock()
				if st == Listening {
					close(listening)
				}
			},
		})
	}()

	<-listening
	e := <-engines
	assert.True(t, e.started)
	cancel()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []WorkerState{Unstarted, TableReplayed, Listening, Terminated}, states)
}

func TestServeReplayFailure(t *testing.T) {
	factory := func(eventloop.Loop, *zap.Logger) Engine {
		e := newRecordingEngine()
		e.failOn = "dir /assets"
		return e
	}

	err := Serve(context.Background(), nil, buildTables(), WorkerOptions{
		EventLoop: eventloop.KindStd,
		Factory:   factory,
	})
	var re *ReplayError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "directories", re.Table)
}

func TestPoolSpawnsRequestedProcesses(t *testing.T) {
	spawner := &fakeSpawner{}
	pool, err := NewPool(Options{
		Host:      "127.0.0.1",
		Processes: 4,
		Workers:   2,
		EventLoop: eventloop.KindPoll,
		Spawner:   spawner,
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	defer pool.Close()

	handles, err := pool.Spawn(context.Background(), buildTables())
	require.NoError(t, err)

	assert.Len(t, handles, 4)
	assert.NotEmpty(t, pool.Addr())
	assert.Equal(t, 2, spawner.payload.Workers)
	assert.Equal(t, "poll", spawner.payload.EventLoop)
	assert.Len(t, spawner.payload.Routes, 3)
	assert.Equal(t, 4.0, testutil.ToFloat64(pool.Metrics().spawned))
	assert.Equal(t, 4.0, testutil.ToFloat64(pool.Metrics().running))

	_, err = pool.Spawn(context.Background(), buildTables())
	assert.Error(t, err)
}

func TestPoolInlineFallback(t *testing.T) {
	engines := make(chan *recordingEngine, 1)
	pool, err := NewPool(Options{
		Host:      "127.0.0.1",
		Processes: 4,
		Workers:   1,
		EventLoop: eventloop.KindStd,
		Platform:  &Platform{Reason: "test"},
		Factory:   recordingFactory(engines),
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	defer pool.Close()

	handles, err := pool.Spawn(context.Background(), buildTables())
	require.NoError(t, err)
	require.Len(t, handles, 1)
	assert.Equal(t, os.Getpid(), handles[0].PID())
	assert.Equal(t, 1.0, testutil.ToFloat64(pool.Metrics().inline))

	e := <-engines
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, pool.Supervise(ctx, handles))
	assert.True(t, handles[0].Exited())
	assert.Contains(t, e.Calls(), "route GET /ping")
}

func TestPoolRejectsBadOptions(t *testing.T) {
	_, err := NewPool(Options{Processes: 0, Workers: 1, Spawner: &fakeSpawner{}})
	assert.Error(t, err)
	_, err = NewPool(Options{Processes: 1, Workers: 0, Spawner: &fakeSpawner{}})
	assert.Error(t, err)
	_, err = NewPool(Options{Processes: 1, Workers: 1})
	assert.Error(t, err)
}

func TestPoolBindFailure(t *testing.T) {
	taken, err := Bind("127.0.0.1", 0)
	require.NoError(t, err)
	defer taken.Close()

	spawner := &fakeSpawner{}
	pool, err := NewPool(Options{Host: "127.0.0.1", Port: taken.Port(), Processes: 2, Workers: 1, Spawner: spawner})
	require.NoError(t, err)

	_, err = pool.Spawn(context.Background(), Tables{})
	var be *BindError
	require.ErrorAs(t, err, &be)
	assert.Empty(t, spawner.handles)
}

func TestSuperviseKillsOnCancel(t *testing.T) {
	spawner := &fakeSpawner{}
	pool, err := NewPool(Options{Host: "127.0.0.1", Processes: 3, Workers: 1, Spawner: spawner})
	require.NoError(t, err)
	defer pool.Close()

	handles, err := pool.Spawn(context.Background(), Tables{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	require.NoError(t, pool.Supervise(ctx, handles))
	for _, h := range spawner.handles {
		assert.True(t, h.Killed())
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(pool.Metrics().exited.WithLabelValues("killed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(pool.Metrics().running))
}

func TestSuperviseReportsCrash(t *testing.T) {
	spawner := &fakeSpawner{}
	pool, err := NewPool(Options{Host: "127.0.0.1", Processes: 2, Workers: 1, Spawner: spawner})
	require.NoError(t, err)
	defer pool.Close()

	handles, err := pool.Spawn(context.Background(), Tables{})
	require.NoError(t, err)

	boom := errors.New("exit status 2")
	spawner.handles[0].finish(boom)
	spawner.handles[1].finish(nil)

	err = pool.Supervise(context.Background(), handles)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(pool.Metrics().exited.WithLabelValues("crashed")))
}

func TestKillAllLeavesNoSurvivors(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no process spawning on windows")
	}
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}

	s, err := Bind("127.0.0.1", 0)
	require.NoError(t, err)
	defer s.Close()

	spawner := &ExecSpawner{Executable: sleep, Args: []string{"30"}, Logger: zaptest.NewLogger(t)}
	handles, err := spawner.Spawn(context.Background(), 3, s, NewManifest(Tables{}, 1, "std"))
	require.NoError(t, err)
	require.Len(t, handles, 3)

	ids := map[string]bool{}
	for _, h := range handles {
		assert.Positive(t, h.PID())
		ids[h.ID()] = true
	}
	assert.Len(t, ids, 3)

	require.NoError(t, KillAll(handles))
	for _, h := range handles {
		assert.ErrorIs(t, h.Wait(), ErrTerminated)
		assert.True(t, h.Exited())
	}
	require.NoError(t, KillAll(handles))
}

func TestIsWorker(t *testing.T) {
	t.Setenv(EnvWorkerID, "")
	assert.False(t, IsWorker())
	assert.Equal(t, -1, WorkerIndex())
	assert.ErrorIs(t, RunWorker(context.Background(), Tables{}, WorkerOptions{}), ErrNotWorker)

	t.Setenv(EnvWorkerID, "abc")
	t.Setenv(EnvWorkerIndex, "3")
	assert.True(t, IsWorker())
	assert.Equal(t, 3, WorkerIndex())
}
