package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/tradle/internal/config"
	"github.com/robalobadob/tradle/internal/countries"
	"github.com/robalobadob/tradle/internal/daily"
	"github.com/robalobadob/tradle/internal/game"
	"github.com/robalobadob/tradle/internal/hub"
	"github.com/robalobadob/tradle/internal/report"
	"github.com/robalobadob/tradle/internal/scores"
	"github.com/robalobadob/tradle/internal/store"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv      *httptest.Server
	client   *http.Client
	header   http.Header
	selector *daily.Selector
	hub      *hub.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil)
}

// newTestEnvWith lets a test adjust the hub wiring before the server starts.
func newTestEnvWith(t *testing.T, adjust func(*hub.Options)) *testEnv {
	t.Helper()
	if err := countries.Init(); err != nil {
		t.Fatalf("countries.Init: %v", err)
	}
	cfg := &config.Config{
		Server: config.ServerConfig{
			Env:          "development",
			JWTSecret:    "test-secret",
			ClientCookie: "tradle_client",
			ClientOrigin: "http://localhost:5173",
		},
		Game: config.GameConfig{ID: "tradle", DailySalt: "salt", RotationMode: true},
	}

	db, err := store.OpenDB(filepath.Join(t.TempDir(), "tradle.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	st := store.NewSQLiteStore(db)

	sel := daily.NewSelector(countries.Real(), cfg.Game.DailySalt)
	opts := hub.Options{
		GameID:    cfg.Game.ID,
		Selector:  sel,
		Real:      countries.Real(),
		Fictional: countries.Fictional(),
		Store:     st,
		Logger:    zerolog.Nop(),
	}
	if adjust != nil {
		adjust(&opts)
	}
	h := hub.New(opts)
	t.Cleanup(h.Close)

	s := New(cfg, h, st, scores.NewStore(db, "k"), zerolog.Nop())
	s.now = func() time.Time { return testNow }

	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	return &testEnv{srv: srv, client: &http.Client{Jar: jar}, header: http.Header{}, selector: sel, hub: h}
}

// as returns a new player (own cookie jar) whose requests are forwarded for ip.
func (e *testEnv) as(ip string) *testEnv {
	jar, _ := cookiejar.New(nil)
	p := *e
	p.client = &http.Client{Jar: jar}
	p.header = http.Header{"X-Forwarded-For": {ip}}
	return &p
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, e.srv.URL+path, &buf)
	for k, v := range e.header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestStateIssuesClientCookie(t *testing.T) {
	e := newTestEnv(t)

	res := e.do(t, http.MethodGet, "/api/game?date=2024-05-05", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if len(res.Cookies()) == 0 || res.Cookies()[0].Name != "tradle_client" {
		t.Fatalf("client cookie not issued")
	}
	st := decode[gameStateRes](t, res)
	if st.Day != "2024-05-05" || !st.Historical || st.Special {
		t.Fatalf("unexpected day info %+v", st)
	}
	if st.MaxAttempts != game.MaxAttempts || len(st.Guesses) != 0 || st.Ended || st.Answer != nil {
		t.Fatalf("unexpected fresh state %+v", st)
	}
	if st.Modes[store.ModeHideImage] || !st.Modes[store.ModeRotation] {
		t.Fatalf("mode defaults = %v", st.Modes)
	}

	// the cookie is reused on the next request
	res = e.do(t, http.MethodGet, "/api/game", nil)
	if len(res.Cookies()) != 0 {
		t.Fatalf("valid cookie was replaced")
	}
}

func TestInvalidDateFallsBackToToday(t *testing.T) {
	e := newTestEnv(t)

	st := decode[gameStateRes](t, e.do(t, http.MethodGet, "/api/game?date=not-a-date", nil))
	if st.Day != "2024-06-01" || st.Historical {
		t.Fatalf("day = %q historical=%v, want today", st.Day, st.Historical)
	}
}

func TestGuessFlow(t *testing.T) {
	e := newTestEnv(t)
	const day = "2024-05-05"
	target, ok := e.selector.Target(day)
	if !ok {
		t.Fatalf("no target for %s", day)
	}
	var wrong string
	for i := 0; i < countries.Real().Len(); i++ {
		if c := countries.Real().At(i); c.Code != target.Code {
			wrong = c.Name
			break
		}
	}

	res := e.do(t, http.MethodPost, "/api/game/guess?date="+day, guessReq{Guess: "Atlantis"})
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("fictional guess status = %d, want 422", res.StatusCode)
	}

	res = e.do(t, http.MethodPost, "/api/game/guess?date="+day, guessReq{Guess: wrong})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("wrong guess status = %d", res.StatusCode)
	}
	g := decode[guessRes](t, res)
	if g.State.Attempts != 1 || g.State.Ended || g.Guess.Distance == 0 || g.Answer != nil {
		t.Fatalf("unexpected wrong-guess result %+v", g)
	}

	g = decode[guessRes](t, e.do(t, http.MethodPost, "/api/game/guess?date="+day, guessReq{Guess: target.Name}))
	if !g.State.Won || !g.State.Ended || g.Guess.Distance != 0 || g.Answer == nil || g.Answer.Code != target.Code {
		t.Fatalf("unexpected winning result %+v", g)
	}

	res = e.do(t, http.MethodPost, "/api/game/guess?date="+day, guessReq{Guess: wrong})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("guess after end status = %d, want 409", res.StatusCode)
	}

	st := decode[gameStateRes](t, e.do(t, http.MethodGet, "/api/game?date="+day, nil))
	if len(st.Guesses) != 2 || !st.Won || st.Answer == nil {
		t.Fatalf("state after win %+v", st)
	}
}

type recordingReporter struct {
	mu      sync.Mutex
	reports []game.Report
}

func (r *recordingReporter) Report(_ context.Context, rep game.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
	return nil
}

func TestReportLocatesEachPlayer(t *testing.T) {
	var mu sync.Mutex
	var lookups []string
	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		lookups = append(lookups, r.URL.Path)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"IPv4":"` + strings.TrimPrefix(r.URL.Path, "/json/") + `"}`))
	}))
	defer geoSrv.Close()

	reporter := &recordingReporter{}
	e := newTestEnvWith(t, func(o *hub.Options) {
		o.Reporter = reporter
		o.Locator = report.NewHTTPLocator(geoSrv.URL+"/json/", time.Second)
		o.ReportTimeout = time.Second
	})
	const day = "2024-05-05"
	target, _ := e.selector.Target(day)

	for _, ip := range []string{"198.51.100.1", "203.0.113.7"} {
		res := e.as(ip).do(t, http.MethodPost, "/api/game/guess?date="+day, guessReq{Guess: target.Name})
		if res.StatusCode != http.StatusOK {
			t.Fatalf("guess from %s status = %d", ip, res.StatusCode)
		}
	}
	// a local address is never sent for lookup
	e.do(t, http.MethodPost, "/api/game/guess?date="+day, guessReq{Guess: target.Name})

	e.hub.Close() // waits for in-flight reports

	mu.Lock()
	defer mu.Unlock()
	sort.Strings(lookups)
	if len(lookups) != 2 || lookups[0] != "/json/198.51.100.1" || lookups[1] != "/json/203.0.113.7" {
		t.Fatalf("lookups = %q, want one per player address", lookups)
	}

	reporter.mu.Lock()
	defer reporter.mu.Unlock()
	if len(reporter.reports) != 3 {
		t.Fatalf("reports = %d, want 3", len(reporter.reports))
	}
	seen := map[string]bool{}
	for _, r := range reporter.reports {
		seen[string(r.IP)] = true
	}
	if !seen[`{"IPv4":"198.51.100.1"}`] || !seen[`{"IPv4":"203.0.113.7"}`] || !seen[""] {
		t.Fatalf("report ip blobs = %v", seen)
	}
}

func TestClientAddr(t *testing.T) {
	cases := []struct {
		remote string
		want   string
	}{
		{"198.51.100.1:5000", "198.51.100.1"},
		{"203.0.113.7", "203.0.113.7"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"127.0.0.1:1234", ""},
		{"10.0.0.4:80", ""},
		{"bogus", ""},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tc.remote
		if got := clientAddr(r); got != tc.want {
			t.Fatalf("clientAddr(%q) = %q, want %q", tc.remote, got, tc.want)
		}
	}
}

func TestEmptyGuessRejected(t *testing.T) {
	e := newTestEnv(t)
	if res := e.do(t, http.MethodPost, "/api/game/guess", guessReq{Guess: "  "}); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.StatusCode)
	}
}

func TestSetMode(t *testing.T) {
	e := newTestEnv(t)

	res := e.do(t, http.MethodPut, "/api/game/modes/"+store.ModeHideImage, modeReq{Enabled: true})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	out := decode[struct {
		Modes map[string]bool `json:"modes"`
	}](t, res)
	if !out.Modes[store.ModeHideImage] {
		t.Fatalf("modes = %v", out.Modes)
	}

	st := decode[gameStateRes](t, e.do(t, http.MethodGet, "/api/game", nil))
	if !st.Modes[store.ModeHideImage] {
		t.Fatalf("mode not persisted: %v", st.Modes)
	}

	if res := e.do(t, http.MethodPut, "/api/game/modes/turboMode", modeReq{Enabled: true}); res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown mode status = %d, want 404", res.StatusCode)
	}
}

func TestScoreCollector(t *testing.T) {
	e := newTestEnv(t)

	rep := game.Report{
		ID: "r1", Game: "tradle", Date: "2024-06-01",
		Answer:  countries.Country{Code: "FR", Name: "France"},
		Guesses: make([]game.Guess, 2),
		Won:     true,
	}
	if res := e.do(t, http.MethodPost, "/tradle/score", rep); res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", res.StatusCode)
	}
	if res := e.do(t, http.MethodPost, "/tradle/score", game.Report{ID: "r2"}); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid report status = %d, want 400", res.StatusCode)
	}

	sum := decode[scores.Summary](t, e.do(t, http.MethodGet, "/tradle/scores?date=2024-06-01", nil))
	if sum.Plays != 1 || sum.Wins != 1 || sum.Distribution[2] != 1 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestClientToken(t *testing.T) {
	s := &Server{cfg: &config.Config{Server: config.ServerConfig{JWTSecret: "a"}}}
	tok, err := s.signClientToken("7d444840-9dc0-11d1-b245-5ffdce74fad2", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if id, err := s.parseClientToken(tok); err != nil || id != "7d444840-9dc0-11d1-b245-5ffdce74fad2" {
		t.Fatalf("parse = %q, %v", id, err)
	}

	other := &Server{cfg: &config.Config{Server: config.ServerConfig{JWTSecret: "b"}}}
	if _, err := other.parseClientToken(tok); err == nil {
		t.Fatalf("token accepted under a different secret")
	}

	expired, _ := s.signClientToken("7d444840-9dc0-11d1-b245-5ffdce74fad2", time.Now().Add(-time.Hour))
	if _, err := s.parseClientToken(expired); err == nil {
		t.Fatalf("expired token accepted")
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc.def")
	if got := bearerToken(r); got != "abc.def" {
		t.Fatalf("bearerToken = %q", got)
	}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	res := e.do(t, http.MethodGet, "/health", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
}
