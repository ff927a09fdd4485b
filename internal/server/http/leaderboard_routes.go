package httpserver

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func (s *Server) addLeaderboardRoutes(r *gin.Engine) {
	r.GET("/api/leaderboard/:game", func(c *gin.Context) {
		g, err := s.games.GetBySlug(c, c.Param("game"))
		if err == gorm.ErrRecordNotFound {
			s.respondError(c, 404, "not_found", "game not found")
			return
		}
		if err != nil {
			s.respondError(c, 500, "internal_error", "failed to load game")
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if offset < 0 {
			offset = 0
		}

		// Cache only serves the first page; deeper windows and username
		// joins always hit the DB.
		if offset == 0 {
			if members, ok := s.cache.Top(c, g.Slug, limit); ok {
				// A cached member without a user row means the cache is
				// stale; serve the window from the DB instead of emitting
				// gapped ranks.
				out := make([]gin.H, 0, len(members))
				for _, m := range members {
					u, err := s.users.Get(c, m.UserID)
					if err != nil {
						out = nil
						break
					}
					out = append(out, gin.H{"rank": len(out) + 1, "user_id": m.UserID, "username": u.Username, "score": m.Score})
				}
				if out != nil {
					s.JSON(c, 200, gin.H{"game": g.Slug, "entries": out, "source": "cache"})
					return
				}
			}
		}
		rows, err := s.lb.Top(c, g.ID, limit, offset)
		if err != nil {
			s.respondError(c, 500, "internal_error", "failed to load leaderboard")
			return
		}
		s.JSON(c, 200, gin.H{"game": g.Slug, "entries": rows, "source": "db"})
	})

	r.GET("/api/leaderboard/:game/rank/:user_id", func(c *gin.Context) {
		g, err := s.games.GetBySlug(c, c.Param("game"))
		if err == gorm.ErrRecordNotFound {
			s.respondError(c, 404, "not_found", "game not found")
			return
		}
		if err != nil {
			s.respondError(c, 500, "internal_error", "failed to load game")
			return
		}
		userID := parseUint(c.Param("user_id"))
		rank, total, err := s.lb.Rank(c, g.ID, userID)
		if err != nil {
			s.respondError(c, 500, "internal_error", "failed to compute rank")
			return
		}
		if rank == 0 {
			s.respondError(c, 404, "not_found", "user has no score for this game")
			return
		}
		s.JSON(c, 200, gin.H{"game": g.Slug, "user_id": userID, "rank": rank, "total": total})
	})
}
