package httpserver

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	gamesgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/games"
)

type gameView struct {
	ID          uint   `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
	Category    string `json:"category"`
	Enabled     bool   `json:"enabled"`
	MinPlayers  int    `json:"min_players"`
	MaxPlayers  int    `json:"max_players"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toGameView(g *gamesgorm.Game) gameView {
	return gameView{
		ID: g.ID, Slug: g.Slug, Name: g.Name, Description: g.Description,
		Thumbnail: g.Thumbnail, Category: g.Category, Enabled: g.Enabled,
		MinPlayers: g.MinPlayers, MaxPlayers: g.MaxPlayers,
		CreatedAt: g.CreatedAt.Format(time.RFC3339),
		UpdatedAt: g.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *Server) addGamesRoutes(r *gin.Engine) {
	r.GET("/api/games", func(c *gin.Context) {
		all := c.Query("all") == "1"
		items, err := s.games.List(c, !all)
		if err != nil {
			s.respondError(c, 500, "internal_error", "failed to list games")
			return
		}
		out := make([]gameView, 0, len(items))
		for _, g := range items {
			out = append(out, toGameView(g))
		}
		s.JSON(c, 200, gin.H{"games": out})
	})
	r.GET("/api/games/:slug", func(c *gin.Context) {
		g, err := s.games.GetBySlug(c, c.Param("slug"))
		if err == gorm.ErrRecordNotFound {
			s.respondError(c, 404, "not_found", "game not found")
			return
		}
		if err != nil {
			s.respondError(c, 500, "internal_error", "failed to load game")
			return
		}
		s.JSON(c, 200, toGameView(g))
	})
	r.POST("/api/games", func(c *gin.Context) {
		var in struct {
			Slug        string `json:"slug"`
			Name        string `json:"name"`
			Description string `json:"description"`
			Thumbnail   string `json:"thumbnail"`
			Category    string `json:"category"`
			MinPlayers  int    `json:"min_players"`
			MaxPlayers  int    `json:"max_players"`
		}
		if err := c.BindJSON(&in); err != nil {
			s.respondError(c, 400, "bad_request", "invalid payload")
			return
		}
		in.Slug = strings.TrimSpace(strings.ToLower(in.Slug))
		if in.Slug == "" || strings.TrimSpace(in.Name) == "" {
			s.respondError(c, 400, "bad_request", "slug and name are required")
			return
		}
		if in.MinPlayers <= 0 {
			in.MinPlayers = 1
		}
		if in.MaxPlayers < in.MinPlayers {
			in.MaxPlayers = in.MinPlayers
		}
		g := &gamesgorm.Game{
			Slug: in.Slug, Name: in.Name, Description: in.Description,
			Thumbnail: in.Thumbnail, Category: in.Category, Enabled: true,
			MinPlayers: in.MinPlayers, MaxPlayers: in.MaxPlayers,
		}
		if err := s.games.Create(c, g); err != nil {
			s.respondError(c, 409, "conflict", "game already exists")
			return
		}
		s.JSON(c, 201, toGameView(g))
	})
	r.PUT("/api/games/:id", func(c *gin.Context) {
		id := parseUint(c.Param("id"))
		g, err := s.games.Get(c, id)
		if err == gorm.ErrRecordNotFound {
			s.respondError(c, 404, "not_found", "game not found")
			return
		}
		if err != nil {
			s.respondError(c, 500, "internal_error", "failed to load game")
			return
		}
		var in struct {
			Name        *string `json:"name"`
			Description *string `json:"description"`
			Thumbnail   *string `json:"thumbnail"`
			Category    *string `json:"category"`
			Enabled     *bool   `json:"enabled"`
		}
		if err := c.BindJSON(&in); err != nil {
			s.respondError(c, 400, "bad_request", "invalid payload")
			return
		}
		if in.Name != nil {
			g.Name = *in.Name
		}
		if in.Description != nil {
			g.Description = *in.Description
		}
		if in.Thumbnail != nil {
			g.Thumbnail = *in.Thumbnail
		}
		if in.Category != nil {
			g.Category = *in.Category
		}
		if in.Enabled != nil {
			g.Enabled = *in.Enabled
		}
		if err := s.games.Update(c, g); err != nil {
			s.respondError(c, 500, "internal_error", "failed to update game")
			return
		}
		s.JSON(c, 200, toGameView(g))
	})
	r.DELETE("/api/games/:id", func(c *gin.Context) {
		id := parseUint(c.Param("id"))
		if id == 0 {
			s.respondError(c, 400, "bad_request", "invalid id")
			return
		}
		if err := s.games.Delete(c, id); err != nil {
			s.respondError(c, 500, "internal_error", "failed to delete game")
			return
		}
		c.Status(204)
	})
}
