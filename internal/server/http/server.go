package httpserver

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	common "github.com/davvoz/Ggameplatform-sub002/internal/cli/common"
	gamesgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/games"
	lbgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/leaderboard"
	questsgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/quests"
	usersgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/users"
	"github.com/davvoz/Ggameplatform-sub002/internal/leaderboard"
	"github.com/davvoz/Ggameplatform-sub002/internal/server/ws"
)

// Config carries the tunables the HTTP layer needs beyond its repos.
type Config struct {
	ChatHistory int
	RoomSize    int
	RedisURL    string
	// Trace wraps the handler chain with OTel HTTP instrumentation.
	Trace bool
}

type Server struct {
	db     *gorm.DB
	users  *usersgorm.Repo
	games  *gamesgorm.Repo
	lb     *lbgorm.Repo
	quests *questsgorm.Repo
	cache  leaderboard.Cache

	chat  *ws.ChatHub
	rooms *ws.RoomManager

	startedAt time.Time
	trace     bool
	httpSrv   *http.Server
}

// NewServer wires the repos, the leaderboard cache and the two websocket
// hubs. AutoMigrate is the caller's job (cmd migrate / serve).
func NewServer(db *gorm.DB, cfg Config) *Server {
	s := &Server{
		db:        db,
		users:     usersgorm.NewRepo(db),
		games:     gamesgorm.NewRepo(db),
		lb:        lbgorm.NewRepo(db),
		quests:    questsgorm.NewRepo(db),
		cache:     leaderboard.NewCache(cfg.RedisURL),
		chat:      ws.NewChatHub(cfg.ChatHistory),
		startedAt: time.Now(),
	}
	s.trace = cfg.Trace
	s.rooms = ws.NewRoomManager(cfg.RoomSize, &briscolaSessions{s: s})
	return s
}

// ginEngine builds the Gin engine with all routes mounted.
func (s *Server) ginEngine() *gin.Engine {
	r := gin.New()
	r.Use(s.ginReqID(), s.ginCORS(), s.ginLogger(), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.String(200, "ok") })
	r.GET("/api/stats", func(c *gin.Context) {
		users, _ := s.users.Count(c)
		sessions, _ := s.games.CountSessions(c, "")
		s.JSON(c, 200, gin.H{
			"uptime_s":     int64(time.Since(s.startedAt).Seconds()),
			"users":        users,
			"sessions":     sessions,
			"rooms":        s.rooms.Rooms(),
			"room_players": s.rooms.Players(),
			"chat_online":  s.chat.Online(),
			"log_counters": common.GetLogCounters(),
		})
	})

	// WebSocket endpoints
	r.GET("/ws/briscola", gin.WrapH(s.rooms))
	r.GET("/ws/community", gin.WrapH(s.chat))

	s.addGamesRoutes(r)
	s.addUsersRoutes(r)
	s.addSessionsRoutes(r)
	s.addLeaderboardRoutes(r)
	s.addQuestsRoutes(r)
	s.addCommunityRoutes(r)

	r.NoRoute(func(c *gin.Context) {
		s.respondError(c, http.StatusNotFound, "not_found", "no such route")
	})
	return r
}

func (s *Server) ginCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		w := c.Writer
		r := c.Request
		// Read config from env; safe defaults for dev
		allowOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOW_ORIGINS"))
		allowHeaders := strings.TrimSpace(os.Getenv("CORS_ALLOW_HEADERS"))
		allowMethods := strings.TrimSpace(os.Getenv("CORS_ALLOW_METHODS"))
		allowCreds := strings.EqualFold(strings.TrimSpace(os.Getenv("CORS_ALLOW_CREDENTIALS")), "true") || os.Getenv("CORS_ALLOW_CREDENTIALS") == "1"

		if allowHeaders == "" {
			allowHeaders = "Content-Type, Authorization"
		}
		if allowMethods == "" {
			allowMethods = "GET, POST, PUT, DELETE, OPTIONS"
		}

		originHdr := r.Header.Get("Origin")
		if allowOrigins == "*" || allowOrigins == "" {
			// Dev default; when credentials are allowed, echo the concrete Origin
			if allowCreds && originHdr != "" {
				w.Header().Set("Access-Control-Allow-Origin", originHdr)
				w.Header().Add("Vary", "Origin")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
		} else {
			allowed := map[string]struct{}{}
			for _, o := range strings.Split(allowOrigins, ",") {
				o = strings.TrimSpace(o)
				if o != "" {
					allowed[o] = struct{}{}
				}
			}
			if originHdr != "" {
				if _, ok := allowed[originHdr]; ok {
					w.Header().Set("Access-Control-Allow-Origin", originHdr)
					w.Header().Add("Vary", "Origin")
				}
			}
		}
		w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
		w.Header().Set("Access-Control-Allow-Methods", allowMethods)
		if allowCreds {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ginReqID injects/propagates an X-Request-ID for traceability.
func (s *Server) ginReqID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.Request.Header.Get("X-Request-ID")
		if strings.TrimSpace(rid) == "" {
			rid = fmt.Sprintf("%d", time.Now().UnixNano())
		}
		c.Set("reqid", rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

func (s *Server) ginLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		dur := time.Since(start)
		lvl := slog.LevelInfo
		st := c.Writer.Status()
		if st >= 500 {
			lvl = slog.LevelError
		} else if st >= 400 {
			lvl = slog.LevelWarn
		}
		rid, _ := c.Get("reqid")
		slog.Log(c, lvl, "http",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", st,
			"bytes", c.Writer.Size(),
			"remote", c.ClientIP(),
			"reqid", rid,
			"dur_ms", dur.Milliseconds(),
		)
	}
}

// respondError sends a unified JSON error body.
func (s *Server) respondError(c *gin.Context, status int, code, message string) {
	type errBody struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	}
	rid, _ := c.Get("reqid")
	ridStr, _ := rid.(string)
	s.JSON(c, status, gin.H{"error": errBody{Code: code, Message: message, RequestID: ridStr}})
	c.Abort()
}

// parseUint converts a decimal string id to uint (0 if invalid).
func parseUint(s string) uint {
	if v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64); err == nil {
		return uint(v)
	}
	return 0
}

func (s *Server) ListenAndServe(addr string) error {
	log.Printf("http api listening on %s", addr)
	var handler http.Handler = s.ginEngine()
	if s.trace {
		handler = otelhttp.NewHandler(handler, "http.api")
	}
	s.httpSrv = &http.Server{Addr: addr, Handler: handler}
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}
	return nil
}
