package httpserver

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	usersgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/users"
)

func (s *Server) addUsersRoutes(r *gin.Engine) {
	r.POST("/api/users", func(c *gin.Context) {
		var in struct {
			Username    string `json:"username"`
			DisplayName string `json:"display_name"`
			Avatar      string `json:"avatar"`
		}
		if err := c.BindJSON(&in); err != nil {
			s.respondError(c, 400, "bad_request", "invalid payload")
			return
		}
		in.Username = strings.TrimSpace(in.Username)
		if in.Username == "" {
			s.respondError(c, 400, "bad_request", "username is required")
			return
		}
		if in.DisplayName == "" {
			in.DisplayName = in.Username
		}
		u := &usersgorm.UserRecord{Username: in.Username, DisplayName: in.DisplayName, Avatar: in.Avatar, Active: true, Level: 1}
		if err := s.users.Create(c, u); err != nil {
			s.respondError(c, 409, "conflict", "username already taken")
			return
		}
		s.JSON(c, 201, userView(u))
	})
	r.GET("/api/users/:id", func(c *gin.Context) {
		u, err := s.users.Get(c, parseUint(c.Param("id")))
		if err == gorm.ErrRecordNotFound {
			s.respondError(c, 404, "not_found", "user not found")
			return
		}
		if err != nil {
			s.respondError(c, 500, "internal_error", "failed to load user")
			return
		}
		s.JSON(c, 200, userView(u))
	})
	r.GET("/api/users/:id/progress", func(c *gin.Context) {
		id := parseUint(c.Param("id"))
		arr, err := s.games.ListProgress(c, id)
		if err != nil {
			s.respondError(c, 500, "internal_error", "failed to list progress")
			return
		}
		out := make([]gin.H, 0, len(arr))
		for _, p := range arr {
			out = append(out, gin.H{
				"game_id":     p.GameID,
				"plays":       p.Plays,
				"best_score":  p.BestScore,
				"last_played": p.LastPlayed.Format(time.RFC3339),
			})
		}
		s.JSON(c, 200, gin.H{"progress": out})
	})
}

func userView(u *usersgorm.UserRecord) gin.H {
	return gin.H{
		"id":           u.ID,
		"username":     u.Username,
		"display_name": u.DisplayName,
		"avatar":       u.Avatar,
		"total_xp":     u.TotalXP,
		"level":        u.Level,
		"created_at":   u.CreatedAt.Format(time.RFC3339),
	}
}
