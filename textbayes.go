package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hickeroar/textbayes/bayes"
	"github.com/hickeroar/textbayes/dataset"
	"github.com/hickeroar/textbayes/store/sqlite"
	"github.com/hickeroar/textbayes/tokenizer"
)

const maxRequestBodyBytes = 1 << 20 // 1 MiB

var categoryPathPattern = regexp.MustCompile(`^[-_A-Za-z0-9]+$`)

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// snapshotSaver stores classifier models outside the process.
type snapshotSaver interface {
	Save(ctx context.Context, model bayes.Model) (string, error)
}

type options struct {
	port      string
	authToken string
	modelPath string
	sqlite    string
	dataset   string
	uneven    bool
	stem      string
	logLevel  string
	logJSON   bool
}

var (
	makeSignalChannel = func() chan os.Signal { return make(chan os.Signal, 1) }
	notifySignals     = func(c chan<- os.Signal, sig ...os.Signal) { signal.Notify(c, sig...) }
	newServer         = func(addr string, handler http.Handler) httpServer {
		return &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       30 * time.Second,
		}
	}
	logFatal = func(v ...interface{}) { log.Fatal(v...) }
	runMain  = func() error {
		opts := parseFlags()
		if err := configureLogging(opts.logLevel, opts.logJSON); err != nil {
			return err
		}

		ctx := context.Background()
		controller := new(ClassifierAPI)
		controller.classifier = bayes.NewClassifier()

		var store *sqlite.Store
		if opts.sqlite != "" {
			var err error
			store, err = sqlite.Open(ctx, opts.sqlite)
			if err != nil {
				return err
			}
			defer store.Close()
			controller.snapshots = store
		}

		if err := prepareClassifier(ctx, controller.classifier, store, opts); err != nil {
			return err
		}

		mux := http.NewServeMux()
		controller.RegisterRoutes(mux)
		controller.ready.Store(true)

		server := newServer(":"+opts.port, withAuthorizationToken(withRequestLogging(mux), opts.authToken))
		log.WithField("port", opts.port).Info("server is listening")

		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logFatal(err)
			}
		}()

		sigCh := makeSignalChannel()
		notifySignals(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		controller.ready.Store(false)

		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}

		return persistClassifier(shutdownCtx, controller.classifier, controller.snapshots, opts.modelPath)
	}
)

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.port, "port", "8000", "The port the server should listen on.")
	flag.StringVar(&opts.authToken, "auth-token", "", "Bearer token required on all endpoints except probes.")
	flag.StringVar(&opts.modelPath, "model", "", "Absolute path of a gob model file restored on start and written on shutdown.")
	flag.StringVar(&opts.sqlite, "sqlite", "", "Path of a SQLite database holding model snapshots.")
	flag.StringVar(&opts.dataset, "dataset", "", "YAML dataset learned on start.")
	flag.BoolVar(&opts.uneven, "uneven", false, "Weight categories by how many statements they learned.")
	flag.StringVar(&opts.stem, "stem", "", "Snowball language used to stem tokens (e.g. english).")
	flag.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error).")
	flag.BoolVar(&opts.logJSON, "log-json", false, "Emit logs as JSON.")
	flag.Parse()
	return opts
}

func configureLogging(level string, asJSON bool) error {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(parsed)
	if asJSON {
		log.SetFormatter(&log.JSONFormatter{})
	}
	return nil
}

// prepareClassifier restores saved state and applies startup options. A gob
// model file wins over the latest SQLite snapshot.
func prepareClassifier(ctx context.Context, c *bayes.Classifier, store *sqlite.Store, opts options) error {
	if opts.stem != "" {
		fn, err := tokenizer.Stemming(opts.stem)
		if err != nil {
			return err
		}
		c.SetTokenizer(fn)
	}

	restored := false
	if opts.modelPath != "" {
		if _, err := os.Stat(opts.modelPath); err == nil {
			if err := c.LoadFromFile(opts.modelPath); err != nil {
				return err
			}
			restored = true
			log.WithField("path", opts.modelPath).Info("restored model file")
		}
	}

	if !restored && store != nil {
		id, model, err := store.Latest(ctx)
		switch {
		case errors.Is(err, sqlite.ErrSnapshotNotFound):
		case err != nil:
			return err
		default:
			if err := c.Restore(model); err != nil {
				return err
			}
			log.WithField("snapshot", id).Info("restored snapshot")
		}
	}

	if opts.dataset != "" {
		ds, err := dataset.LoadFile(opts.dataset)
		if err != nil {
			return err
		}
		ds.Train(c)
		log.WithFields(log.Fields{"path": opts.dataset, "samples": len(ds.Samples)}).Info("learned dataset")
	}

	if opts.uneven {
		c.Uneven(true)
	}

	return nil
}

func persistClassifier(ctx context.Context, c *bayes.Classifier, store snapshotSaver, modelPath string) error {
	if modelPath != "" {
		if err := c.SaveToFile(modelPath); err != nil {
			return err
		}
		log.WithField("path", modelPath).Info("saved model file")
	}
	if store != nil {
		id, err := store.Save(ctx, c.Snapshot())
		if err != nil {
			return err
		}
		log.WithField("snapshot", id).Info("saved snapshot")
	}
	return nil
}

// ClassifierAPI serves classifier HTTP endpoints and shared classifier state.
type ClassifierAPI struct {
	classifier *bayes.Classifier
	snapshots  snapshotSaver
	ready      atomic.Bool
}

// RegisterRoutes registers all API routes on the provided ServeMux.
func (c *ClassifierAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/info", c.InfoHandler)
	mux.HandleFunc("/learn/", c.LearnHandler)
	mux.HandleFunc("/guess", c.GuessHandler)
	mux.HandleFunc("/most", c.MostHandler)
	mux.HandleFunc("/words", c.WordsHandler)
	mux.HandleFunc("/words/", c.WordsHandler)
	mux.HandleFunc("/uneven", c.UnevenHandler)
	mux.HandleFunc("/flush", c.FlushHandler)
	mux.HandleFunc("/snapshot", c.SnapshotHandler)
	mux.HandleFunc("/healthz", HealthHandler)
	mux.HandleFunc("/readyz", c.ReadyHandler)
}

func withAuthorizationToken(next http.Handler, token string) http.Handler {
	if token == "" {
		return next
	}
	expected := []byte(token)

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/healthz" || req.URL.Path == "/readyz" {
			next.ServeHTTP(w, req)
			return
		}

		provided, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
		if !ok || provided == "" || subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="textbayes"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, req)
	})
}

func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, req)
		log.WithFields(log.Fields{
			"method":   req.Method,
			"path":     req.URL.Path,
			"duration": time.Since(start),
		}).Debug("request served")
	})
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	jsonResponse, err := json.Marshal(value)
	if err != nil {
		http.Error(w, `{"error":"failed to marshal response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(jsonResponse); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func readBody(w http.ResponseWriter, req *http.Request) (string, bool) {
	req.Body = http.MaxBytesReader(w, req.Body, maxRequestBodyBytes)
	defer req.Body.Close()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return "", false
		}
		writeError(w, http.StatusBadRequest, "unable to read request body")
		return "", false
	}

	return string(body), true
}

func categoryFromPath(path, prefix string) (string, bool) {
	category := strings.TrimPrefix(path, prefix)
	if category == "" || strings.Contains(category, "/") {
		return "", false
	}

	if !categoryPathPattern.MatchString(category) {
		return "", false
	}

	return category, true
}

func requireMethod(w http.ResponseWriter, req *http.Request, method string) bool {
	if req.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// InfoHandler returns the current classifier training state.
func (c *ClassifierAPI) InfoHandler(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodGet) {
		return
	}

	writeJSON(w, http.StatusOK, NewInfoResponse(c.classifier))
}

// LearnHandler learns the request body under the category named in the path.
func (c *ClassifierAPI) LearnHandler(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodPost) {
		return
	}

	category, ok := categoryFromPath(req.URL.Path, "/learn/")
	if !ok {
		writeError(w, http.StatusNotFound, "invalid category route")
		return
	}

	body, ok := readBody(w, req)
	if !ok {
		return
	}

	c.classifier.Learn(body, category)
	log.WithField("category", category).Debug("learned statement")

	writeJSON(w, http.StatusOK, NewTrainingResponse(c.classifier, true))
}

// GuessHandler returns every category ranked by likelihood for the request body.
func (c *ClassifierAPI) GuessHandler(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodPost) {
		return
	}

	body, ok := readBody(w, req)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, c.classifier.Guess(body))
}

// MostHandler returns the most likely category for the request body.
func (c *ClassifierAPI) MostHandler(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodPost) {
		return
	}

	body, ok := readBody(w, req)
	if !ok {
		return
	}

	top, ok := c.classifier.Guess(body).Top()
	if !ok {
		writeError(w, http.StatusConflict, bayes.ErrUntrained.Error())
		return
	}

	writeJSON(w, http.StatusOK, MostResponse{Category: top.Category, Score: top.Decimal()})
}

// WordsHandler returns learned word counts for one category or all of them.
func (c *ClassifierAPI) WordsHandler(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodGet) {
		return
	}

	if req.URL.Path == "/words" || req.URL.Path == "/words/" {
		writeJSON(w, http.StatusOK, c.classifier.AllWords())
		return
	}

	category, ok := categoryFromPath(req.URL.Path, "/words/")
	if !ok {
		writeError(w, http.StatusNotFound, "invalid category route")
		return
	}
	if _, known := c.classifier.Documents()[category]; !known {
		writeError(w, http.StatusNotFound, "unknown category")
		return
	}

	writeJSON(w, http.StatusOK, c.classifier.Words(category))
}

// UnevenHandler switches document-frequency priors using the enabled query parameter.
func (c *ClassifierAPI) UnevenHandler(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodPost) {
		return
	}

	enabled, err := strconv.ParseBool(req.URL.Query().Get("enabled"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "enabled must be a boolean")
		return
	}

	c.classifier.Uneven(enabled)
	log.WithField("uneven", enabled).Info("uneven mode changed")

	writeJSON(w, http.StatusOK, UnevenResponse{Uneven: enabled})
}

// FlushHandler deletes all training data and gives us a fresh slate.
func (c *ClassifierAPI) FlushHandler(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodPost) {
		return
	}

	c.classifier.Flush()
	log.Info("classifier flushed")

	writeJSON(w, http.StatusOK, NewTrainingResponse(c.classifier, true))
}

// SnapshotHandler stores the current model in the snapshot database.
func (c *ClassifierAPI) SnapshotHandler(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodPost) {
		return
	}

	if c.snapshots == nil {
		writeError(w, http.StatusNotImplemented, "snapshot store not configured")
		return
	}

	id, err := c.snapshots.Save(req.Context(), c.classifier.Snapshot())
	if err != nil {
		log.WithError(err).Error("snapshot failed")
		writeError(w, http.StatusInternalServerError, "snapshot failed")
		return
	}
	log.WithField("snapshot", id).Info("saved snapshot")

	writeJSON(w, http.StatusOK, SnapshotResponse{ID: id})
}

// HealthHandler returns liveness status for process health checks.
func HealthHandler(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler returns readiness status for traffic checks.
func (c *ClassifierAPI) ReadyHandler(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodGet) {
		return
	}
	if !c.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func main() {
	if err := runMain(); err != nil {
		logFatal(err)
	}
}
