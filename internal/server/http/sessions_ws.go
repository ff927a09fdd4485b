package httpserver

import (
	"context"

	gamesgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/games"
	usersgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/users"
	"gorm.io/gorm"
)

// briscolaGameSlug names the catalog entry the websocket rooms book
// sessions against (seeded by `gameplatformd seed`).
const briscolaGameSlug = "briscola"

// briscolaSessions adapts the repos to the ws.SessionStore interface:
// each seated player gets a GameSession row tagged with the room id.
type briscolaSessions struct{ s *Server }

func (b *briscolaSessions) Open(ctx context.Context, username, roomID string) (uint, error) {
	u, err := b.s.users.GetByUsername(ctx, username)
	if err == gorm.ErrRecordNotFound {
		u = &usersgorm.UserRecord{Username: username, DisplayName: username, Active: true}
		if err = b.s.users.Create(ctx, u); err != nil {
			return 0, err
		}
	} else if err != nil {
		return 0, err
	}
	g, err := b.s.games.GetBySlug(ctx, briscolaGameSlug)
	if err != nil {
		return 0, err
	}
	sess := &gamesgorm.GameSession{UserID: u.ID, GameID: g.ID, RoomID: roomID}
	if err := b.s.games.StartSession(ctx, sess); err != nil {
		return 0, err
	}
	return sess.ID, nil
}

func (b *briscolaSessions) Abandon(ctx context.Context, sessionID uint) error {
	return b.s.games.AbandonSession(ctx, sessionID)
}
