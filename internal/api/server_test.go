package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/seantiz/foundry/internal/config"
	"github.com/seantiz/foundry/internal/events"
	"github.com/seantiz/foundry/internal/store"
)

// fakeProc is a ProcessManager for tests. It never spawns real processes.
type fakeProc struct {
	mu        sync.Mutex
	nextPID   int
	running   map[int]bool
	startErr  error
	started   [][]string
	logPaths  []string
	stopped   []int
	stopFails bool
}

func newFakeProc() *fakeProc {
	return &fakeProc{nextPID: 1000, running: map[int]bool{}}
}

func (f *fakeProc) StartProcess(command []string, logPath string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return 0, f.startErr
	}
	f.nextPID++
	f.running[f.nextPID] = true
	f.started = append(f.started, command)
	f.logPaths = append(f.logPaths, logPath)
	return f.nextPID, nil
}

func (f *fakeProc) StopProcess(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopFails {
		return false
	}
	f.stopped = append(f.stopped, pid)
	delete(f.running, pid)
	return true
}

func (f *fakeProc) IsRunning(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[pid]
}

// fakeTracker records Track calls.
type fakeTracker struct {
	mu      sync.Mutex
	tracked []trackedCall
}

type trackedCall struct {
	pid     int
	jobType string
	name    string
	logPath string
}

func (f *fakeTracker) Track(pid int, jobType, name, logPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracked = append(f.tracked, trackedCall{pid, jobType, name, logPath})
}

type testServer struct {
	srv     *Server
	store   *store.SQLiteStore
	proc    *fakeProc
	tracker *fakeTracker
	broker  *events.Broker
	cfg     config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := config.Config{
		ListenAddr: ":0",
		TrainedDir: t.TempDir(),
		OnnxDir:    t.TempDir(),
		CalibDir:   t.TempDir(),
		LogsDir:    t.TempDir(),
	}

	proc := newFakeProc()
	tracker := &fakeTracker{}
	broker := events.NewBroker()
	t.Cleanup(broker.Close)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return &testServer{
		srv:     NewServer(cfg, s, proc, tracker, broker, logger),
		store:   s,
		proc:    proc,
		tracker: tracker,
		broker:  broker,
		cfg:     cfg,
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestPanicRecovery(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.Router().Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	server := httptest.NewServer(ts.srv.Router())
	defer server.Close()

	resp, err := http.Get(server.URL + "/panic")
	if err != nil {
		t.Fatalf("GET /panic: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestCORSHeaders(t *testing.T) {
	ts := newTestServer(t)
	server := httptest.NewServer(ts.srv.Router())
	defer server.Close()

	req, _ := http.NewRequest("OPTIONS", server.URL+"/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS /healthz: %v", err)
	}
	defer resp.Body.Close()

	if v := resp.Header.Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", v, "*")
	}
}
