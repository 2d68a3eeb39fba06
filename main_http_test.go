package main

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"biowordle/internal/game"
	"biowordle/internal/types"
	"biowordle/internal/words"
)

const (
	TestDay      = "2026-10-18"
	TestNextDay  = "2026-10-19"
	TestTarget   = "CRANE"
	TestNextWord = "GHOST"
)

// testClock is a settable clock shared by the app and its sessions.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// setupTestApp returns an app whose schedule has CRANE today and GHOST
// tomorrow, with the reveal running without delays.
func setupTestApp(t *testing.T) (*App, *testClock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	schedule := words.New([]game.TargetWord{
		{Value: TestTarget, Date: TestDay},
		{Value: TestNextWord, Date: TestNextDay},
	}, []string{"SLATE", "ADIEU", "SPEED", "ERASE"}, nil)

	clock := &testClock{now: time.Date(2026, 10, 18, 9, 0, 0, 0, time.Local)}
	app := newApp(schedule)
	app.Now = clock.Now
	app.Reveal = game.Reveal{Interval: 0}
	app.RateLimitRPS = 1000
	app.RateLimitBurst = 1000
	return app, clock
}

// player drives the router with a persistent session cookie.
type player struct {
	t      *testing.T
	router http.Handler
	cookie *http.Cookie
}

func newPlayer(t *testing.T, router http.Handler) *player {
	return &player{t: t, router: router}
}

func (p *player) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	p.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, _ := http.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.RemoteAddr = "127.0.0.1:12345"
	if p.cookie != nil {
		req.AddCookie(p.cookie)
	}
	w := httptest.NewRecorder()
	p.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			p.cookie = c
		}
	}
	return w
}

func (p *player) view(w *httptest.ResponseRecorder) types.GameView {
	p.t.Helper()
	var v types.GameView
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		p.t.Fatalf("failed to decode game view: %v (body %q)", err, w.Body.String())
	}
	return v
}

func (p *player) guess(word string) (*httptest.ResponseRecorder, types.GameView) {
	p.t.Helper()
	w := p.do("POST", RouteGuess, url.Values{"guess": {word}})
	return w, p.view(w)
}

func statuses(row []types.GuessResult) []string {
	out := make([]string, len(row))
	for i, r := range row {
		out[i] = r.Status
	}
	return out
}

func TestGameStateHandler(t *testing.T) {
	app, _ := setupTestApp(t)
	p := newPlayer(t, app.setupRouter())

	for _, path := range []string{RouteHome, RouteGameState} {
		w := p.do("GET", path, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s returned status %d, want 200", path, w.Code)
		}
		v := p.view(w)
		if v.WordLength != 5 || v.MaxAttempts != game.MaxAttempts {
			t.Errorf("GET %s: wordLength=%d maxAttempts=%d", path, v.WordLength, v.MaxAttempts)
		}
		if v.State != "awaiting_input" || v.Attempts != 0 || v.GameOver {
			t.Errorf("GET %s: unexpected fresh view %+v", path, v)
		}
		if v.TargetWord != "" {
			t.Errorf("GET %s leaked the target word before the game ended", path)
		}
		if v.Date != TestDay {
			t.Errorf("GET %s: date = %q, want %q", path, v.Date, TestDay)
		}
	}
	if p.cookie == nil || !validSessionID(p.cookie.Value) {
		t.Fatalf("expected a session cookie, got %+v", p.cookie)
	}
}

func TestSessionCookieIsRefreshed(t *testing.T) {
	app, _ := setupTestApp(t)
	p := newPlayer(t, app.setupRouter())

	p.do("GET", RouteGameState, nil)
	if p.cookie == nil {
		t.Fatal("expected a session cookie on the first visit")
	}
	first := p.cookie.Value

	w := p.do("GET", RouteGameState, nil)
	var refreshed *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			refreshed = c
		}
	}
	if refreshed == nil {
		t.Fatal("returning player did not get the cookie re-issued")
	}
	if refreshed.Value != first {
		t.Errorf("cookie value changed from %s to %s", first, refreshed.Value)
	}
	if refreshed.MaxAge != int(app.CookieMaxAge.Seconds()) || !refreshed.HttpOnly {
		t.Errorf("unexpected refreshed cookie %+v", refreshed)
	}
}

func TestLetterDeleteSubmitFlow(t *testing.T) {
	app, _ := setupTestApp(t)
	p := newPlayer(t, app.setupRouter())

	for _, l := range []string{"s", "l", "a", "t", "e", "x"} {
		if w := p.do("POST", RouteLetter, url.Values{"letter": {l}}); w.Code != http.StatusOK {
			t.Fatalf("POST /letter %q returned %d", l, w.Code)
		}
	}
	v := p.view(p.do("GET", RouteGameState, nil))
	if v.Current != "SLATE" {
		t.Fatalf("current = %q, want SLATE (extra letter ignored)", v.Current)
	}

	v = p.view(p.do("POST", RouteDelete, nil))
	if v.Current != "SLAT" {
		t.Fatalf("after delete current = %q, want SLAT", v.Current)
	}
	p.do("POST", RouteLetter, url.Values{"letter": {"E"}})

	w := p.do("POST", RouteSubmit, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /submit returned %d: %s", w.Code, w.Body.String())
	}
	v = p.view(w)
	if v.Attempts != 1 || v.Current != "" {
		t.Fatalf("after submit attempts=%d current=%q", v.Attempts, v.Current)
	}
	want := []string{"absent", "absent", "correct", "absent", "correct"}
	if got := statuses(v.Guesses[0]); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("row = %v, want %v", got, want)
	}
	if v.Keys["A"] != "correct" || v.Keys["S"] != "absent" {
		t.Errorf("keys = %v", v.Keys)
	}
}

func TestDeleteOnEmptyRowIsIgnored(t *testing.T) {
	app, _ := setupTestApp(t)
	p := newPlayer(t, app.setupRouter())
	if w := p.do("POST", RouteDelete, nil); w.Code != http.StatusOK {
		t.Errorf("POST /delete on empty row returned %d, want 200", w.Code)
	}
}

func TestLetterHandler_InvalidLetter(t *testing.T) {
	app, _ := setupTestApp(t)
	p := newPlayer(t, app.setupRouter())
	for _, l := range []string{"", "1", "ab", "?"} {
		w := p.do("POST", RouteLetter, url.Values{"letter": {l}})
		if w.Code != http.StatusBadRequest {
			t.Errorf("POST /letter %q returned %d, want 400", l, w.Code)
		}
		if v := p.view(w); v.Notice != NoticeInvalidLetter {
			t.Errorf("POST /letter %q notice = %q", l, v.Notice)
		}
	}
}

func TestSubmitHandler_NotEnoughLetters(t *testing.T) {
	app, _ := setupTestApp(t)
	p := newPlayer(t, app.setupRouter())
	p.do("POST", RouteLetter, url.Values{"letter": {"C"}})

	w := p.do("POST", RouteSubmit, nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("POST /submit returned %d, want 422", w.Code)
	}
	v := p.view(w)
	if v.Notice != NoticeNotEnough || v.Attempts != 0 || v.Current != "C" {
		t.Errorf("unexpected view %+v", v)
	}
}

func TestGuessHandler_ShortAndLongGuess(t *testing.T) {
	app, _ := setupTestApp(t)
	p := newPlayer(t, app.setupRouter())

	w, v := p.guess("abc")
	if w.Code != http.StatusUnprocessableEntity || v.Notice != NoticeNotEnough {
		t.Errorf("short guess: %d %q", w.Code, v.Notice)
	}
	w, v = p.guess("cranes")
	if w.Code != http.StatusUnprocessableEntity || v.Notice != NoticeTooMany {
		t.Errorf("long guess: %d %q", w.Code, v.Notice)
	}
	if v.Attempts != 0 {
		t.Errorf("rejected guesses used an attempt: %d", v.Attempts)
	}
}

func TestGuessHandler_NotInWordList(t *testing.T) {
	app, _ := setupTestApp(t)
	p := newPlayer(t, app.setupRouter())

	w, v := p.guess("qzxvj")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("POST /guess returned %d, want 422", w.Code)
	}
	if v.Notice != NoticeNotInWordList || !v.Shake {
		t.Errorf("notice=%q shake=%v", v.Notice, v.Shake)
	}
	if v.Attempts != 0 || v.Current != "QZXVJ" {
		t.Errorf("unknown word should keep the row and not use an attempt: %+v", v)
	}
}

func TestGuessHandler_Win(t *testing.T) {
	app, _ := setupTestApp(t)
	p := newPlayer(t, app.setupRouter())

	p.guess("slate")
	w, v := p.guess("crane")
	if w.Code != http.StatusOK {
		t.Fatalf("POST /guess returned %d", w.Code)
	}
	if !v.Won || !v.GameOver || v.State != "won" {
		t.Fatalf("expected a win, got %+v", v)
	}
	if v.Score != 25 {
		t.Errorf("score = %d, want 25", v.Score)
	}
	if v.TargetWord != TestTarget {
		t.Errorf("targetWord = %q, want %q", v.TargetWord, TestTarget)
	}

	w, v = p.guess("adieu")
	if w.Code != http.StatusOK || v.Attempts != 2 || v.Notice != "" {
		t.Errorf("input after a win should be a silent no-op: %d %+v", w.Code, v)
	}
}

func TestGuessHandler_Lose(t *testing.T) {
	app, _ := setupTestApp(t)
	p := newPlayer(t, app.setupRouter())

	var v types.GameView
	for range game.MaxAttempts {
		_, v = p.guess("slate")
	}
	if v.State != "lost" || !v.GameOver || v.Won {
		t.Fatalf("expected a loss, got %+v", v)
	}
	if v.Score != 0 {
		t.Errorf("score after a loss = %d, want 0", v.Score)
	}
	if v.TargetWord != TestTarget {
		t.Errorf("targetWord = %q, want %q", v.TargetWord, TestTarget)
	}
	if len(v.Guesses) != game.MaxAttempts {
		t.Errorf("rows = %d, want %d", len(v.Guesses), game.MaxAttempts)
	}
}

func TestNoWordScheduled(t *testing.T) {
	app, clock := setupTestApp(t)
	clock.Advance(72 * time.Hour)
	p := newPlayer(t, app.setupRouter())

	w := p.do("GET", RouteGameState, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /game-state returned %d, want 503", w.Code)
	}
	var resp types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != NoticeNoWord {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestProgressSurvivesIdleCleanup(t *testing.T) {
	app, clock := setupTestApp(t)
	p := newPlayer(t, app.setupRouter())
	p.guess("slate")

	clock.Advance(app.SessionTimeout + time.Minute)
	if n := app.cleanupOldSessions(); n != 1 {
		t.Fatalf("cleanupOldSessions removed %d, want 1", n)
	}

	v := p.view(p.do("GET", RouteGameState, nil))
	if v.Attempts != 1 {
		t.Errorf("attempts after reload = %d, want 1", v.Attempts)
	}
}

func TestNewDayStartsNewGame(t *testing.T) {
	app, clock := setupTestApp(t)
	p := newPlayer(t, app.setupRouter())
	p.guess("crane")

	clock.Advance(24 * time.Hour)
	v := p.view(p.do("GET", RouteGameState, nil))
	if v.Date != TestNextDay || v.Attempts != 0 || v.GameOver {
		t.Errorf("expected a fresh game for %s, got %+v", TestNextDay, v)
	}
	_, ok, err := app.KV.Get(t.Context(), SessionSlotPrefix+p.cookie.Value)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("yesterday's saved game should have been evicted")
	}
}

func TestShareHandler(t *testing.T) {
	app, _ := setupTestApp(t)
	p := newPlayer(t, app.setupRouter())

	if w := p.do("GET", RouteShare, nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET /share.png before winning returned %d, want 404", w.Code)
	}

	p.guess("crane")
	w := p.do("GET", RouteShare, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /share.png returned %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}
}

func TestShareText(t *testing.T) {
	if got := shareText(30); got != "I scored 30 points in today's BioWordle." {
		t.Errorf("shareText(30) = %q", got)
	}
}

func TestRevealHandler(t *testing.T) {
	app, _ := setupTestApp(t)
	router := app.setupRouter()
	p := newPlayer(t, router)
	p.guess("crane")

	srv := httptest.NewServer(router)
	defer srv.Close()

	header := http.Header{}
	header.Set("Cookie", SessionCookieName+"="+p.cookie.Value)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+RouteReveal, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for i := range len(TestTarget) {
		var f types.RevealFrame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read tile %d: %v", i, err)
		}
		if f.Type != "tile" || f.Index != i || f.Letter != string(TestTarget[i]) || f.Status != "correct" {
			t.Errorf("tile %d = %+v", i, f)
		}
	}
	var outcome types.RevealFrame
	if err := conn.ReadJSON(&outcome); err != nil {
		t.Fatalf("read outcome: %v", err)
	}
	if outcome.Type != "outcome" || outcome.State != "won" || outcome.Score != 30 || outcome.Word != TestTarget {
		t.Errorf("outcome = %+v", outcome)
	}
}

func TestRevealHandler_NoRowsSendsOutcomeOnly(t *testing.T) {
	app, _ := setupTestApp(t)
	router := app.setupRouter()
	p := newPlayer(t, router)
	p.do("GET", RouteHome, nil)

	srv := httptest.NewServer(router)
	defer srv.Close()

	header := http.Header{}
	header.Set("Cookie", SessionCookieName+"="+p.cookie.Value)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+RouteReveal, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var f types.RevealFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatal(err)
	}
	if f.Type != "outcome" || f.State != "awaiting_input" || f.Word != "" {
		t.Errorf("frame = %+v", f)
	}
}

// TestRateLimitMiddleware checks rate limiting blocks excessive requests
func TestRateLimitMiddleware(t *testing.T) {
	app, _ := setupTestApp(t)
	app.RateLimitRPS = 5
	app.RateLimitBurst = 10

	router := gin.New()
	router.Use(app.rateLimitMiddleware())
	router.GET("/limited", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req, _ := http.NewRequest("GET", "/limited", nil)
	req.RemoteAddr = "127.0.0.1:12345"

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("Request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("11th request: expected 429 Too Many Requests, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), NoticeRateLimited) {
		t.Errorf("429 body = %q", w.Body.String())
	}
}

func TestHealthzHandler(t *testing.T) {
	app, _ := setupTestApp(t)
	p := newPlayer(t, app.setupRouter())

	w := p.do("GET", RouteHealthz, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /healthz returned status %d, want 200", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal /healthz response: %v", err)
	}
	for _, field := range []string{"status", "env", "words_loaded", "accepted_words", "word_today", "store", "sessions", "uptime", "timestamp"} {
		if _, ok := resp[field]; !ok {
			t.Errorf("Expected %q field in /healthz response", field)
		}
	}
	if resp["words_loaded"] != float64(2) || resp["accepted_words"] != float64(4) {
		t.Errorf("word counts = %v / %v", resp["words_loaded"], resp["accepted_words"])
	}
	if resp["word_today"] != true || resp["env"] != "development" {
		t.Errorf("word_today=%v env=%v", resp["word_today"], resp["env"])
	}
}

func TestRequestIDHeader(t *testing.T) {
	app, _ := setupTestApp(t)
	router := app.setupRouter()

	req, _ := http.NewRequest("GET", RouteHealthz, nil)
	req.Header.Set("X-Request-Id", "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Errorf("X-Request-Id = %q, want abc-123", got)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", RouteHealthz, nil))
	if w.Header().Get("X-Request-Id") == "" {
		t.Error("expected a generated X-Request-Id")
	}
}

func TestCacheHeaders(t *testing.T) {
	app, _ := setupTestApp(t)
	p := newPlayer(t, app.setupRouter())
	w := p.do("GET", RouteGameState, nil)
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}
}

func isGzipped(w *httptest.ResponseRecorder) bool {
	return w.Header().Get("Content-Encoding") == "gzip"
}

func decompressGzip(data []byte) (string, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	return string(out), err
}

func TestGzipMiddleware_CompressesGameState(t *testing.T) {
	app, _ := setupTestApp(t)
	router := app.setupRouter()

	req, _ := http.NewRequest("GET", RouteGameState, nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if !isGzipped(w) {
		t.Fatalf("Expected gzip Content-Encoding for game state")
	}
	body, err := decompressGzip(w.Body.Bytes())
	if err != nil || !strings.Contains(body, `"wordLength":5`) {
		t.Errorf("Failed to decompress gzipped game state: %v, got: %q", err, body)
	}
}

func TestGzipMiddleware_SkipsPNG(t *testing.T) {
	app, _ := setupTestApp(t)
	p := newPlayer(t, app.setupRouter())
	p.guess("crane")

	req, _ := http.NewRequest("GET", RouteShare, nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.AddCookie(p.cookie)
	w := httptest.NewRecorder()
	p.router.ServeHTTP(w, req)
	if isGzipped(w) {
		t.Errorf("Did not expect gzip Content-Encoding for .png")
	}
}
