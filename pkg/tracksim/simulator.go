package tracksim

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldworks-labs/trackmock/pkg/tracker"
)

const defaultListen = "127.0.0.1:0"

// ErrDisabled is returned by record operations while no session is active.
var ErrDisabled = errors.New("simulator disabled")

// Simulator is an in-memory stand-in for one Hardware Tracker deployment.
// New builds an idle simulator; Enable activates a session from a dataset
// and Disable discards it. Multiple simulators can coexist in one process,
// each fully independent.
type Simulator struct {
	cfg    *Config
	logger *slog.Logger

	mu      sync.RWMutex
	session *session
	latency time.Duration

	srv     *http.Server
	ln      net.Listener
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

type Option func(*Simulator)

// WithLatency delays every simulated response by d.
func WithLatency(d time.Duration) Option {
	return func(s *Simulator) {
		s.latency = d
	}
}

// WithLogger routes lifecycle logging to logger. The default discards it.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

// New builds an idle simulator from the provided configuration.
func New(cfg *Config, opts ...Option) (*Simulator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	s := &Simulator{
		cfg:     cfg,
		latency: cfg.Server.Latency.Duration(),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewFromFile loads a TOML scenario file and returns an idle simulator.
func NewFromFile(path string, opts ...Option) (*Simulator, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// session is the state of one enabled period: record store, request log and
// router. A disabled simulator has no session; in-flight requests keep the
// old session alive until they finish.
type session struct {
	id     string
	sim    *Simulator
	apiKey string

	mu    sync.RWMutex
	state *simState

	log     *requestLog
	handler http.Handler
}

func newSession(s *Simulator, ds *Dataset) *session {
	sess := &session{
		id:     uuid.NewString(),
		sim:    s,
		apiKey: s.cfg.Server.APIKey,
		state:  newState(ds),
		log:    &requestLog{},
	}
	sess.handler = sess.routes()
	return sess
}

// Enable loads the dataset at path and activates a fresh session. Enabling
// a running simulator rebuilds its state from scratch; the request log
// starts empty either way. On error the previous session stays in place.
func (s *Simulator) Enable(path string) error {
	ds, err := LoadDataset(path)
	if err != nil {
		return err
	}
	return s.EnableDataset(ds)
}

// EnableDataset activates a session from an in-memory dataset. The dataset
// is validated and cloned; the caller's copy stays untouched.
func (s *Simulator) EnableDataset(ds *Dataset) error {
	if ds == nil {
		return errors.New("dataset is required")
	}
	clone := ds.clone()
	if err := clone.normalize(time.Now().UTC()); err != nil {
		return err
	}
	sess := newSession(s, clone)

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	s.logger.Info("simulator enabled",
		slog.String("session", sess.id),
		slog.Int("assets", len(clone.Assets)),
		slog.Int("projects", len(clone.Projects)))
	return nil
}

// Disable deactivates the simulator, discarding the session's records and
// request log. Calls already in flight finish against the old session.
func (s *Simulator) Disable() {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()

	if sess != nil {
		s.logger.Info("simulator disabled", slog.String("session", sess.id))
	}
}

// Enabled reports whether a session is active.
func (s *Simulator) Enabled() bool {
	return s.currentSession() != nil
}

func (s *Simulator) currentSession() *session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// SetLatency adjusts the artificial delay applied to simulated responses.
func (s *Simulator) SetLatency(d time.Duration) {
	s.mu.Lock()
	s.latency = d
	s.mu.Unlock()
}

func (s *Simulator) Latency() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latency
}

// GetByID returns the record with the given id. Misses map to
// tracker.ErrNotFound.
func (s *Simulator) GetByID(id int) (tracker.Asset, error) {
	sess := s.currentSession()
	if sess == nil {
		return tracker.Asset{}, ErrDisabled
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	a, ok := sess.state.get(id)
	if !ok {
		return tracker.Asset{}, tracker.ErrNotFound
	}
	return a, nil
}

// GetByName returns the first record with the given name, in insertion
// order.
func (s *Simulator) GetByName(name string) (tracker.Asset, error) {
	sess := s.currentSession()
	if sess == nil {
		return tracker.Asset{}, ErrDisabled
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	a, ok := sess.state.getByName(name)
	if !ok {
		return tracker.Asset{}, tracker.ErrNotFound
	}
	return a, nil
}

// Assets returns a restartable sequence over the records in insertion
// order. Each restart observes the store as of that moment; a disabled
// simulator yields nothing.
func (s *Simulator) Assets() iter.Seq[tracker.Asset] {
	return func(yield func(tracker.Asset) bool) {
		sess := s.currentSession()
		if sess == nil {
			return
		}
		sess.mu.RLock()
		assets := sess.state.list()
		sess.mu.RUnlock()
		for _, a := range assets {
			if !yield(a) {
				return
			}
		}
	}
}

// Search returns the records matching q, in insertion order.
func (s *Simulator) Search(q Query) ([]tracker.Asset, error) {
	sess := s.currentSession()
	if sess == nil {
		return nil, ErrDisabled
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return sess.state.search(q)
}

// Insert adds a record, assigning the next id above every id ever used in
// this session. A zero status defaults to valid; unknown status ids are
// rejected.
func (s *Simulator) Insert(a tracker.Asset) (tracker.Asset, error) {
	sess := s.currentSession()
	if sess == nil {
		return tracker.Asset{}, ErrDisabled
	}
	if a.Status.ID == 0 {
		a.Status = tracker.StatusValid
	} else {
		status, ok := tracker.StatusByID(a.Status.ID)
		if !ok {
			return tracker.Asset{}, fmt.Errorf("unknown status id %d", a.Status.ID)
		}
		a.Status = status
	}
	normalizeFieldNames(&a)

	now := time.Now().UTC()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state.insert(a, now), nil
}

// Replace merges the set fields of patch into the stored record and
// refreshes its update time.
func (s *Simulator) Replace(id int, patch tracker.AssetPatch) (tracker.Asset, error) {
	sess := s.currentSession()
	if sess == nil {
		return tracker.Asset{}, ErrDisabled
	}
	if sid, set := patch.StatusID.Get(); set {
		if _, ok := tracker.StatusByID(sid); !ok {
			return tracker.Asset{}, fmt.Errorf("unknown status id %d", sid)
		}
	}

	now := time.Now().UTC()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	a, ok := sess.state.replace(id, patch, now)
	if !ok {
		return tracker.Asset{}, tracker.ErrNotFound
	}
	return a, nil
}

// Delete removes a record. Its id is never reused.
func (s *Simulator) Delete(id int) error {
	sess := s.currentSession()
	if sess == nil {
		return ErrDisabled
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.state.remove(id) {
		return tracker.ErrNotFound
	}
	return nil
}

// Projects returns the session's project catalog.
func (s *Simulator) Projects() ([]tracker.Project, error) {
	sess := s.currentSession()
	if sess == nil {
		return nil, ErrDisabled
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return slices.Clone(sess.state.projects), nil
}

// Requests returns a copy of the session's request log in acceptance order.
// A disabled simulator has no log.
func (s *Simulator) Requests() []RequestEntry {
	sess := s.currentSession()
	if sess == nil {
		return nil
	}
	return sess.log.all()
}

// ClearRequests empties the request log without touching the records.
func (s *Simulator) ClearRequests() {
	if sess := s.currentSession(); sess != nil {
		sess.log.clear()
	}
}

// ServeHTTP serves the tracker API. While the simulator is disabled every
// request other than the health check is answered 503 and left unlogged.
func (s *Simulator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/healthz" {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}
	sess := s.currentSession()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, tracker.ErrCodeUnavailable, "simulator disabled")
		return
	}
	sess.handler.ServeHTTP(w, r)
}

// Start begins serving HTTP requests in the background.
func (s *Simulator) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	listen := s.cfg.Server.Listen
	if listen == "" {
		listen = defaultListen
	}
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Handler: s}
	s.ln, s.srv, s.ctx, s.cancel = ln, srv, ctx, cancel
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server stopped", slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("simulator listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// Run starts the server and blocks until the provided context is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Addr returns the address the server is listening on.
func (s *Simulator) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// WaitReady polls the health endpoint until the server responds or the
// context is cancelled.
func (s *Simulator) WaitReady(ctx context.Context) error {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return errors.New("server not started")
	}
	url := fmt.Sprintf("http://%s/healthz", s.Addr())
	client := &http.Client{Timeout: 200 * time.Millisecond}
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		res, err := client.Do(req)
		if err == nil {
			res.Body.Close() //nolint:errcheck
			if res.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Shutdown gracefully stops the server. Pending latency sleeps are cut
// short.
func (s *Simulator) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	srv, cancel := s.srv, s.cancel
	s.started = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	err := srv.Shutdown(ctx)
	s.wg.Wait()
	return err
}

// doneCh exposes the server lifecycle to latency sleeps. It is nil, and
// never fires, while the simulator is used without Start.
func (s *Simulator) doneCh() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ctx == nil {
		return nil
	}
	return s.ctx.Done()
}
