package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/hickeroar/textbayes/bayes"
	"github.com/hickeroar/textbayes/store/sqlite"
)

type fakeServer struct {
	listenErr   error
	shutdownErr error
	listened    atomic.Bool
}

func (f *fakeServer) ListenAndServe() error {
	f.listened.Store(true)
	return f.listenErr
}

func (f *fakeServer) Shutdown(context.Context) error {
	return f.shutdownErr
}

// stubMain swaps the process hooks used by runMain and restores them on cleanup.
func stubMain(t *testing.T, args ...string) (chan os.Signal, *fakeServer, *http.Handler) {
	t.Helper()

	oldRunMain := runMain
	oldMakeSignal := makeSignalChannel
	oldNotify := notifySignals
	oldNewServer := newServer
	oldLogFatal := logFatal
	oldFlagCommandLine := flag.CommandLine
	oldArgs := os.Args
	t.Cleanup(func() {
		runMain = oldRunMain
		makeSignalChannel = oldMakeSignal
		notifySignals = oldNotify
		newServer = oldNewServer
		logFatal = oldLogFatal
		flag.CommandLine = oldFlagCommandLine
		os.Args = oldArgs
	})

	sigCh := make(chan os.Signal, 1)
	makeSignalChannel = func() chan os.Signal { return sigCh }
	notifySignals = func(chan<- os.Signal, ...os.Signal) {}

	server := &fakeServer{listenErr: http.ErrServerClosed}
	var capturedHandler http.Handler
	newServer = func(_ string, handler http.Handler) httpServer {
		capturedHandler = handler
		return server
	}
	logFatal = func(...interface{}) {}

	flag.CommandLine = flag.NewFlagSet("test", flag.ContinueOnError)
	os.Args = append([]string{"textbayes.test"}, args...)

	return sigCh, server, &capturedHandler
}

func runUntilSignal(t *testing.T, sigCh chan os.Signal) error {
	t.Helper()

	done := make(chan error, 1)
	go func() {
		done <- runMain()
	}()

	sigCh <- syscall.SIGTERM

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for runMain to exit")
		return nil
	}
}

func TestRunMainSuccessPath(t *testing.T) {
	sigCh, _, handler := stubMain(t, "--port", "9999", "--auth-token", "secret-token")

	if err := runUntilSignal(t, sigCh); err != nil {
		t.Fatalf("expected nil runMain error, got %v", err)
	}

	if *handler == nil {
		t.Fatal("expected handler to be provided to server")
	}

	req := httptest.NewRequest(http.MethodGet, "/info", nil)
	rr := httptest.NewRecorder()
	(*handler).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected protected endpoint to require auth token, got status %d", rr.Code)
	}
}

func TestRunMainLoadsDatasetAndPersists(t *testing.T) {
	dir := t.TempDir()
	datasetPath := filepath.Join(dir, "train.yaml")
	if err := os.WriteFile(datasetPath, []byte("samples:\n  - category: spam\n    text: buy cheap pills\n  - category: ham\n    text: team meeting\n"), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	modelPath := filepath.Join(dir, "model.gob")
	dbPath := filepath.Join(dir, "snapshots.db")

	sigCh, _, handler := stubMain(t,
		"--dataset", datasetPath,
		"--model", modelPath,
		"--sqlite", dbPath,
		"--uneven",
		"--stem", "english",
		"--log-level", "debug",
		"--log-json",
	)

	if err := runUntilSignal(t, sigCh); err != nil {
		t.Fatalf("expected nil runMain error, got %v", err)
	}

	rr := httptest.NewRecorder()
	(*handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/info", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected info status: %d", rr.Code)
	}

	loaded := bayes.NewClassifier()
	if err := loaded.LoadFromFile(modelPath); err != nil {
		t.Fatalf("expected model file written on shutdown: %v", err)
	}
	if !loaded.IsUneven() {
		t.Fatal("expected uneven flag in saved model")
	}
	if got := loaded.Categories(); !reflect.DeepEqual(got, []string{"spam", "ham"}) {
		t.Fatalf("unexpected categories in saved model: %v", got)
	}
	if got := loaded.Words("spam")["pill"]; got != 1 {
		t.Fatalf("expected stemmed tokens in saved model, got %v", loaded.Words("spam"))
	}

	store, err := sqlite.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("open snapshot store: %v", err)
	}
	defer store.Close()
	if _, _, err := store.Latest(context.Background()); err != nil {
		t.Fatalf("expected snapshot written on shutdown: %v", err)
	}
}

func TestRunMainRejectsBadOptions(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "bad log level", args: []string{"--log-level", "loud"}},
		{name: "unknown stem language", args: []string{"--stem", "klingon"}},
		{name: "missing dataset", args: []string{"--dataset", "/does/not/exist.yaml"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stubMain(t, tc.args...)
			if err := runMain(); err == nil {
				t.Fatal("expected runMain to fail")
			}
		})
	}
}

func TestMainHandlesRunError(t *testing.T) {
	oldRunMain := runMain
	oldLogFatal := logFatal
	defer func() {
		runMain = oldRunMain
		logFatal = oldLogFatal
	}()

	expectedErr := errors.New("boom")
	runMain = func() error { return expectedErr }

	called := false
	logFatal = func(v ...interface{}) {
		called = true
		if len(v) != 1 {
			t.Fatalf("unexpected fatal args: %v", v)
		}
		if !errors.Is(v[0].(error), expectedErr) {
			t.Fatalf("unexpected fatal error: %v", v[0])
		}
	}

	main()
	if !called {
		t.Fatal("expected main to call logFatal on error")
	}
}
