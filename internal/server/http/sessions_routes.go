package httpserver

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	gamesgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/games"
	questsgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/quests"
)

func sessionView(sess *gamesgorm.GameSession) gin.H {
	out := gin.H{
		"id":         sess.ID,
		"user_id":    sess.UserID,
		"game_id":    sess.GameID,
		"room_id":    sess.RoomID,
		"score":      sess.Score,
		"xp_earned":  sess.XPEarned,
		"status":     sess.Status,
		"started_at": sess.StartedAt.Format(time.RFC3339),
	}
	if sess.EndedAt != nil {
		out["ended_at"] = sess.EndedAt.Format(time.RFC3339)
	}
	return out
}

func (s *Server) addSessionsRoutes(r *gin.Engine) {
	r.POST("/api/sessions", func(c *gin.Context) {
		var in struct {
			UserID uint   `json:"user_id"`
			GameID uint   `json:"game_id"`
			RoomID string `json:"room_id"`
		}
		if err := c.BindJSON(&in); err != nil {
			s.respondError(c, 400, "bad_request", "invalid payload")
			return
		}
		if _, err := s.users.Get(c, in.UserID); err != nil {
			s.respondError(c, 404, "not_found", "user not found")
			return
		}
		g, err := s.games.Get(c, in.GameID)
		if err != nil {
			s.respondError(c, 404, "not_found", "game not found")
			return
		}
		if !g.Enabled {
			s.respondError(c, 409, "conflict", "game is disabled")
			return
		}
		sess := &gamesgorm.GameSession{UserID: in.UserID, GameID: in.GameID, RoomID: in.RoomID}
		if err := s.games.StartSession(c, sess); err != nil {
			s.respondError(c, 500, "internal_error", "failed to start session")
			return
		}
		s.JSON(c, 201, sessionView(sess))
	})

	r.GET("/api/sessions/:id", func(c *gin.Context) {
		sess, err := s.games.GetSession(c, parseUint(c.Param("id")))
		if err == gorm.ErrRecordNotFound {
			s.respondError(c, 404, "not_found", "session not found")
			return
		}
		if err != nil {
			s.respondError(c, 500, "internal_error", "failed to load session")
			return
		}
		s.JSON(c, 200, sessionView(sess))
	})

	// Completing a session is the platform's single write fan-out: the XP
	// rule converts score to XP, the user total is bumped, and progress
	// plus leaderboard rows absorb the result.
	r.POST("/api/sessions/:id/complete", func(c *gin.Context) {
		id := parseUint(c.Param("id"))
		var in struct {
			Score int64 `json:"score"`
		}
		if err := c.BindJSON(&in); err != nil {
			s.respondError(c, 400, "bad_request", "invalid payload")
			return
		}
		if in.Score < 0 {
			s.respondError(c, 400, "bad_request", "score must be non-negative")
			return
		}
		pre, err := s.games.GetSession(c, id)
		if err == gorm.ErrRecordNotFound {
			s.respondError(c, 404, "not_found", "session not found")
			return
		}
		if err != nil {
			s.respondError(c, 500, "internal_error", "failed to load session")
			return
		}
		rule, err := s.quests.RuleForGame(c, pre.GameID)
		if err != nil {
			s.respondError(c, 500, "internal_error", "failed to load xp rule")
			return
		}
		xp := questsgorm.SessionXP(rule, in.Score)
		sess, err := s.games.CompleteSession(c, id, in.Score, xp)
		if err == gorm.ErrInvalidData {
			s.respondError(c, 409, "conflict", "session is not active")
			return
		}
		if err != nil {
			s.respondError(c, 500, "internal_error", "failed to complete session")
			return
		}
		if err := s.users.AddXP(c, sess.UserID, xp); err != nil {
			s.respondError(c, 500, "internal_error", "failed to award xp")
			return
		}
		if err := s.lb.UpsertBest(c, sess.UserID, sess.GameID, sess.Score); err != nil {
			s.respondError(c, 500, "internal_error", "failed to update leaderboard")
			return
		}
		if g, err := s.games.Get(c, sess.GameID); err == nil {
			s.cache.Record(c, g.Slug, sess.UserID, sess.Score)
		}
		s.JSON(c, 200, sessionView(sess))
	})
}
