package httpserver

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	questsgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/quests"
)

func (s *Server) addQuestsRoutes(r *gin.Engine) {
	r.GET("/api/quests", func(c *gin.Context) {
		arr, err := s.quests.ListQuests(c, true)
		if err != nil {
			s.respondError(c, 500, "internal_error", "failed to list quests")
			return
		}
		out := make([]gin.H, 0, len(arr))
		for _, q := range arr {
			out = append(out, gin.H{
				"id":           q.ID,
				"slug":         q.Slug,
				"title":        q.Title,
				"description":  q.Description,
				"xp_reward":    q.XPReward,
				"target_count": q.TargetCount,
			})
		}
		s.JSON(c, 200, gin.H{"quests": out})
	})

	r.GET("/api/users/:id/quests", func(c *gin.Context) {
		arr, err := s.quests.ListUserQuests(c, parseUint(c.Param("id")))
		if err != nil {
			s.respondError(c, 500, "internal_error", "failed to list user quests")
			return
		}
		out := make([]gin.H, 0, len(arr))
		for _, uq := range arr {
			row := gin.H{
				"quest_id":  uq.QuestID,
				"progress":  uq.Progress,
				"completed": uq.Completed,
				"claimed":   uq.Claimed,
			}
			if uq.CompletedAt != nil {
				row["completed_at"] = uq.CompletedAt.Format(time.RFC3339)
			}
			if uq.ClaimedAt != nil {
				row["claimed_at"] = uq.ClaimedAt.Format(time.RFC3339)
			}
			out = append(out, row)
		}
		s.JSON(c, 200, gin.H{"quests": out})
	})

	r.POST("/api/users/:id/quests/:quest_id/claim", func(c *gin.Context) {
		userID := parseUint(c.Param("id"))
		questID := parseUint(c.Param("quest_id"))
		reward, err := s.quests.Claim(c, userID, questID)
		if err == gorm.ErrRecordNotFound {
			s.respondError(c, 404, "not_found", "quest not tracked for user")
			return
		}
		if err == questsgorm.ErrNotClaimable {
			s.respondError(c, 409, "conflict", "quest not completed or already claimed")
			return
		}
		if err != nil {
			s.respondError(c, 500, "internal_error", "failed to claim quest")
			return
		}
		if err := s.users.AddXP(c, userID, reward); err != nil {
			s.respondError(c, 500, "internal_error", "failed to award xp")
			return
		}
		s.JSON(c, 200, gin.H{"claimed": true, "xp_reward": reward})
	})
}
