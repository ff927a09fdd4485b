package httpserver

import (
	"github.com/gin-gonic/gin"

	gamesgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/games"
)

func (s *Server) addCommunityRoutes(r *gin.Engine) {
	r.GET("/api/community/stats", func(c *gin.Context) {
		users, err := s.users.Count(c)
		if err != nil {
			s.respondError(c, 500, "internal_error", "failed to count users")
			return
		}
		played, err := s.games.CountSessions(c, gamesgorm.SessionCompleted)
		if err != nil {
			s.respondError(c, 500, "internal_error", "failed to count sessions")
			return
		}
		s.JSON(c, 200, gin.H{
			"registered_users": users,
			"sessions_played":  played,
			"chat_online":      s.chat.Online(),
			"messages_seen":    s.chat.MessagesSeen(),
			"briscola_rooms":   s.rooms.Rooms(),
			"briscola_players": s.rooms.Players(),
		})
	})
}
