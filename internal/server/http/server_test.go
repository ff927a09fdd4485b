package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/davvoz/Ggameplatform-sub002/internal/db"
	gamesgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/games"
	lbgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/leaderboard"
	questsgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/quests"
	usersgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/users"
	"github.com/davvoz/Ggameplatform-sub002/internal/leaderboard"
	"gorm.io/gorm"
)

func newTestServer(t *testing.T) (*Server, *gorm.DB) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	for _, fn := range []func(*gorm.DB) error{
		usersgorm.AutoMigrate, gamesgorm.AutoMigrate, lbgorm.AutoMigrate, questsgorm.AutoMigrate,
	} {
		if err := fn(gdb); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}
	return NewServer(gdb, Config{}), gdb
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	out := map[string]any{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	r := s.ginEngine()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != 200 || w.Body.String() != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", w.Code, w.Body.String())
	}
}

func TestCORS_DefaultWildcardAndPreflight(t *testing.T) {
	_ = os.Unsetenv("CORS_ALLOW_ORIGINS")
	_ = os.Unsetenv("CORS_ALLOW_CREDENTIALS")
	s, _ := newTestServer(t)
	r := s.ginEngine()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/games", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", w.Code)
	}
}

func TestErrorEnvelope(t *testing.T) {
	s, _ := newTestServer(t)
	r := s.ginEngine()
	w, out := doJSON(t, r, http.MethodGet, "/api/games/nope", nil)
	if w.Code != 404 {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	e, ok := out["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %v", out)
	}
	if e["code"] != "not_found" {
		t.Fatalf("expected not_found, got %v", e["code"])
	}
}

func TestUserAndGameCRUD(t *testing.T) {
	s, _ := newTestServer(t)
	r := s.ginEngine()

	w, out := doJSON(t, r, http.MethodPost, "/api/users", map[string]any{"username": "ada"})
	if w.Code != 201 {
		t.Fatalf("create user: expected 201, got %d (%v)", w.Code, out)
	}
	if out["username"] != "ada" || out["level"] != float64(1) {
		t.Fatalf("unexpected user: %v", out)
	}

	// Duplicate username conflicts.
	w, _ = doJSON(t, r, http.MethodPost, "/api/users", map[string]any{"username": "ada"})
	if w.Code != 409 {
		t.Fatalf("dup user: expected 409, got %d", w.Code)
	}

	w, out = doJSON(t, r, http.MethodPost, "/api/games", map[string]any{"slug": "Briscola", "name": "Briscola", "min_players": 2, "max_players": 2})
	if w.Code != 201 {
		t.Fatalf("create game: expected 201, got %d (%v)", w.Code, out)
	}
	if out["slug"] != "briscola" {
		t.Fatalf("expected lowercased slug, got %v", out["slug"])
	}

	w, out = doJSON(t, r, http.MethodGet, "/api/games/briscola", nil)
	if w.Code != 200 || out["name"] != "Briscola" {
		t.Fatalf("get game: %d %v", w.Code, out)
	}

	w, out = doJSON(t, r, http.MethodGet, "/api/games", nil)
	if w.Code != 200 {
		t.Fatalf("list games: %d", w.Code)
	}
	if arr, ok := out["games"].([]any); !ok || len(arr) != 1 {
		t.Fatalf("expected one game, got %v", out["games"])
	}
}

func TestGameUpdateAndDelete(t *testing.T) {
	s, _ := newTestServer(t)
	r := s.ginEngine()

	_, game := doJSON(t, r, http.MethodPost, "/api/games", map[string]any{"slug": "memory", "name": "Memory"})
	id := game["id"].(float64)

	w, out := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/games/%.0f", id), map[string]any{"name": "Memory Deluxe", "enabled": false})
	if w.Code != 200 {
		t.Fatalf("update: %d %v", w.Code, out)
	}
	if out["name"] != "Memory Deluxe" || out["enabled"] != false {
		t.Fatalf("unexpected game after update: %v", out)
	}
	// Untouched fields survive a partial update.
	if out["slug"] != "memory" {
		t.Fatalf("expected slug unchanged, got %v", out["slug"])
	}

	// Disabled games drop out of the default listing but stay fetchable.
	_, list := doJSON(t, r, http.MethodGet, "/api/games", nil)
	if arr := list["games"].([]any); len(arr) != 0 {
		t.Fatalf("expected no enabled games, got %v", arr)
	}
	w, _ = doJSON(t, r, http.MethodGet, "/api/games/memory", nil)
	if w.Code != 200 {
		t.Fatalf("get disabled game: %d", w.Code)
	}

	w, _ = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/games/%.0f", id), nil)
	if w.Code != 204 {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}
	w, _ = doJSON(t, r, http.MethodGet, "/api/games/memory", nil)
	if w.Code != 404 {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
	w, _ = doJSON(t, r, http.MethodDelete, "/api/games/abc", nil)
	if w.Code != 400 {
		t.Fatalf("delete bad id: expected 400, got %d", w.Code)
	}
}

func TestGetSession(t *testing.T) {
	s, _ := newTestServer(t)
	r := s.ginEngine()

	_, user := doJSON(t, r, http.MethodPost, "/api/users", map[string]any{"username": "dan"})
	_, game := doJSON(t, r, http.MethodPost, "/api/games", map[string]any{"slug": "snake", "name": "Snake"})
	_, sess := doJSON(t, r, http.MethodPost, "/api/sessions", map[string]any{
		"user_id": user["id"], "game_id": game["id"], "room_id": "r9",
	})

	w, out := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/sessions/%.0f", sess["id"].(float64)), nil)
	if w.Code != 200 {
		t.Fatalf("get session: %d %v", w.Code, out)
	}
	if out["status"] != "active" || out["room_id"] != "r9" {
		t.Fatalf("unexpected session: %v", out)
	}
	if _, ok := out["ended_at"]; ok {
		t.Fatalf("active session must not carry ended_at: %v", out)
	}

	w, _ = doJSON(t, r, http.MethodGet, "/api/sessions/999", nil)
	if w.Code != 404 {
		t.Fatalf("unknown session: expected 404, got %d", w.Code)
	}
}

func TestListQuestsEndpoint(t *testing.T) {
	s, gdb := newTestServer(t)
	r := s.ginEngine()

	repo := questsgorm.NewRepo(gdb)
	if err := repo.CreateQuest(context.Background(), &questsgorm.Quest{Slug: "first-game", Title: "First Steps", XPReward: 100, TargetCount: 1, Active: true}); err != nil {
		t.Fatalf("quest: %v", err)
	}
	if err := repo.CreateQuest(context.Background(), &questsgorm.Quest{Slug: "retired", Title: "Retired", Active: false}); err != nil {
		t.Fatalf("quest: %v", err)
	}

	w, out := doJSON(t, r, http.MethodGet, "/api/quests", nil)
	if w.Code != 200 {
		t.Fatalf("quests: %d %v", w.Code, out)
	}
	arr, ok := out["quests"].([]any)
	if !ok || len(arr) != 1 {
		t.Fatalf("expected one active quest, got %v", out["quests"])
	}
	q := arr[0].(map[string]any)
	if q["slug"] != "first-game" || q["xp_reward"] != float64(100) {
		t.Fatalf("unexpected quest: %v", q)
	}
}

// stubCache serves a fixed top window regardless of game.
type stubCache struct{ members []leaderboard.Member }

func (s stubCache) Record(context.Context, string, uint, int64) {}
func (s stubCache) Top(context.Context, string, int) ([]leaderboard.Member, bool) {
	return s.members, true
}
func (s stubCache) Invalidate(context.Context, string) {}

func TestLeaderboardStaleCacheFallsBackToDB(t *testing.T) {
	s, gdb := newTestServer(t)

	_, err := usersgorm.NewRepo(gdb).GetByUsername(context.Background(), "nobody")
	if err != gorm.ErrRecordNotFound {
		t.Fatalf("sanity: %v", err)
	}

	r := s.ginEngine()
	_, user := doJSON(t, r, http.MethodPost, "/api/users", map[string]any{"username": "eve"})
	userID := uint(user["id"].(float64))
	_, game := doJSON(t, r, http.MethodPost, "/api/games", map[string]any{"slug": "snake", "name": "Snake"})
	gameID := uint(game["id"].(float64))
	if err := lbgorm.NewRepo(gdb).UpsertBest(context.Background(), userID, gameID, 70); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Cache names a user with no DB row: the window must come from the DB
	// with contiguous ranks, not a gapped cache rendering.
	s.cache = stubCache{members: []leaderboard.Member{
		{UserID: 999, Score: 80},
		{UserID: userID, Score: 70},
	}}
	w, out := doJSON(t, r, http.MethodGet, "/api/leaderboard/snake", nil)
	if w.Code != 200 {
		t.Fatalf("leaderboard: %d %v", w.Code, out)
	}
	if out["source"] != "db" {
		t.Fatalf("expected db fallback, got %v", out["source"])
	}
	entries := out["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %v", entries)
	}
	first := entries[0].(map[string]any)
	if first["rank"] != float64(1) || first["username"] != "eve" {
		t.Fatalf("expected rank 1 for eve, got %v", first)
	}

	// With all cached members resolvable the cache serves the window.
	s.cache = stubCache{members: []leaderboard.Member{{UserID: userID, Score: 70}}}
	w, out = doJSON(t, r, http.MethodGet, "/api/leaderboard/snake", nil)
	if w.Code != 200 || out["source"] != "cache" {
		t.Fatalf("expected cache hit, got %d %v", w.Code, out)
	}
}

func TestSessionCompleteFlow(t *testing.T) {
	s, gdb := newTestServer(t)
	r := s.ginEngine()

	_, user := doJSON(t, r, http.MethodPost, "/api/users", map[string]any{"username": "bob"})
	userID := uint(user["id"].(float64))
	_, game := doJSON(t, r, http.MethodPost, "/api/games", map[string]any{"slug": "snake", "name": "Snake"})
	gameID := uint(game["id"].(float64))

	// XP rule: 10 base + 1 per point.
	if err := questsgorm.NewRepo(gdb).UpsertRule(context.Background(), &questsgorm.XPRule{GameID: gameID, BaseXP: 10, XPPerPoint: 1}); err != nil {
		t.Fatalf("rule: %v", err)
	}

	w, sess := doJSON(t, r, http.MethodPost, "/api/sessions", map[string]any{"user_id": userID, "game_id": gameID})
	if w.Code != 201 {
		t.Fatalf("start session: %d %v", w.Code, sess)
	}
	sid := sess["id"].(float64)

	w, done := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/sessions/%.0f/complete", sid), map[string]any{"score": 90})
	if w.Code != 200 {
		t.Fatalf("complete: %d %v", w.Code, done)
	}
	if done["xp_earned"] != float64(100) {
		t.Fatalf("expected 100 xp, got %v", done["xp_earned"])
	}

	// Completing again conflicts.
	w, _ = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/sessions/%.0f/complete", sid), map[string]any{"score": 10})
	if w.Code != 409 {
		t.Fatalf("double complete: expected 409, got %d", w.Code)
	}

	// User XP bumped.
	w, u := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/users/%d", userID), nil)
	if w.Code != 200 || u["total_xp"] != float64(100) {
		t.Fatalf("user xp: %d %v", w.Code, u)
	}

	// Leaderboard row present with the score.
	w, lb := doJSON(t, r, http.MethodGet, "/api/leaderboard/snake", nil)
	if w.Code != 200 {
		t.Fatalf("leaderboard: %d %v", w.Code, lb)
	}
	entries := lb["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %v", entries)
	}
	first := entries[0].(map[string]any)
	if first["username"] != "bob" || first["score"] != float64(90) || first["rank"] != float64(1) {
		t.Fatalf("unexpected entry: %v", first)
	}

	// Rank endpoint agrees.
	w, rk := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/leaderboard/snake/rank/%d", userID), nil)
	if w.Code != 200 || rk["rank"] != float64(1) || rk["total"] != float64(1) {
		t.Fatalf("rank: %d %v", w.Code, rk)
	}

	// Progress recorded.
	w, pg := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/users/%d/progress", userID), nil)
	if w.Code != 200 {
		t.Fatalf("progress: %d", w.Code)
	}
	parr := pg["progress"].([]any)
	if len(parr) != 1 || parr[0].(map[string]any)["best_score"] != float64(90) {
		t.Fatalf("unexpected progress: %v", parr)
	}
}

func TestSessionStartValidation(t *testing.T) {
	s, _ := newTestServer(t)
	r := s.ginEngine()
	w, _ := doJSON(t, r, http.MethodPost, "/api/sessions", map[string]any{"user_id": 1, "game_id": 1})
	if w.Code != 404 {
		t.Fatalf("expected 404 for unknown user, got %d", w.Code)
	}
}

func TestCommunityStats(t *testing.T) {
	s, _ := newTestServer(t)
	r := s.ginEngine()
	_, _ = doJSON(t, r, http.MethodPost, "/api/users", map[string]any{"username": "ada"})
	w, out := doJSON(t, r, http.MethodGet, "/api/community/stats", nil)
	if w.Code != 200 {
		t.Fatalf("stats: %d", w.Code)
	}
	if out["registered_users"] != float64(1) || out["chat_online"] != float64(0) {
		t.Fatalf("unexpected stats: %v", out)
	}
}

func TestQuestClaimEndpoint(t *testing.T) {
	s, gdb := newTestServer(t)
	r := s.ginEngine()

	_, user := doJSON(t, r, http.MethodPost, "/api/users", map[string]any{"username": "cleo"})
	userID := uint(user["id"].(float64))

	q := &questsgorm.Quest{Slug: "first-game", Title: "First Steps", XPReward: 100, TargetCount: 1, Active: true}
	if err := questsgorm.NewRepo(gdb).CreateQuest(context.Background(), q); err != nil {
		t.Fatalf("quest: %v", err)
	}
	if err := gdb.Create(&questsgorm.UserQuest{UserID: userID, QuestID: q.ID, Progress: 1, Completed: true}).Error; err != nil {
		t.Fatalf("user quest: %v", err)
	}

	w, out := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/users/%d/quests/%d/claim", userID, q.ID), nil)
	if w.Code != 200 || out["xp_reward"] != float64(100) {
		t.Fatalf("claim: %d %v", w.Code, out)
	}
	w, _ = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/users/%d/quests/%d/claim", userID, q.ID), nil)
	if w.Code != 409 {
		t.Fatalf("double claim: expected 409, got %d", w.Code)
	}
	w, u := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/users/%d", userID), nil)
	if w.Code != 200 || u["total_xp"] != float64(100) {
		t.Fatalf("user xp after claim: %d %v", w.Code, u)
	}
}
