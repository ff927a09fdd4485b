package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gorm.io/gorm/clause"

	gamesgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/games"
	lbgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/leaderboard"
	questsgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/quests"
	usersgorm "github.com/davvoz/Ggameplatform-sub002/internal/infra/persistence/gorm/users"
)

// Built-in catalog. Seeding is idempotent: games upsert on slug, XP rules
// on game id, quests on slug.
var seedGames = []gamesgorm.Game{
	{Slug: "briscola", Name: "Briscola", Description: "Italian trick-taking card game", Category: "cards", Enabled: true, MinPlayers: 2, MaxPlayers: 2},
	{Slug: "solitaire", Name: "Solitaire", Description: "Classic single-player card game", Category: "cards", Enabled: true, MinPlayers: 1, MaxPlayers: 1},
	{Slug: "memory", Name: "Memory", Description: "Tile-matching memory game", Category: "puzzle", Enabled: true, MinPlayers: 1, MaxPlayers: 1},
	{Slug: "snake", Name: "Snake", Description: "Arcade snake", Category: "arcade", Enabled: true, MinPlayers: 1, MaxPlayers: 1},
}

var seedRules = map[string]questsgorm.XPRule{
	"briscola":  {BaseXP: 50, XPPerPoint: 2, DailyCap: 1000},
	"solitaire": {BaseXP: 20, XPPerPoint: 1, DailyCap: 500},
	"memory":    {BaseXP: 15, XPPerPoint: 1, DailyCap: 500},
	"snake":     {BaseXP: 10, XPPerPoint: 1, DailyCap: 300},
}

var seedQuests = []questsgorm.Quest{
	{Slug: "first-game", Title: "First Steps", Description: "Finish your first game", XPReward: 100, TargetCount: 1, Active: true},
	{Slug: "card-shark", Title: "Card Shark", Description: "Win 10 briscola games", XPReward: 500, TargetCount: 10, Active: true},
	{Slug: "daily-player", Title: "Daily Player", Description: "Play a game 7 days in a row", XPReward: 300, TargetCount: 7, Active: true},
}

func seedCmd(cfgFile, profile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the game catalog, XP rules and quests",
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, _, err := openDB(*cfgFile, *profile)
			if err != nil {
				return err
			}
			if err := migrateAll(gdb); err != nil {
				return err
			}
			ctx := context.Background()
			qrepo := questsgorm.NewRepo(gdb)
			for _, g := range seedGames {
				g := g
				if err := gdb.WithContext(ctx).Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "slug"}},
					DoUpdates: clause.AssignmentColumns([]string{"name", "description", "category", "min_players", "max_players"}),
				}).Create(&g).Error; err != nil {
					return fmt.Errorf("seed game %s: %w", g.Slug, err)
				}
				if rule, ok := seedRules[g.Slug]; ok {
					var row gamesgorm.Game
					if err := gdb.WithContext(ctx).Where("slug = ?", g.Slug).First(&row).Error; err != nil {
						return err
					}
					rule.GameID = row.ID
					if err := qrepo.UpsertRule(ctx, &rule); err != nil {
						return fmt.Errorf("seed rule %s: %w", g.Slug, err)
					}
				}
			}
			for _, q := range seedQuests {
				q := q
				if err := gdb.WithContext(ctx).Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "slug"}},
					DoUpdates: clause.AssignmentColumns([]string{"title", "description", "xp_reward", "target_count", "active"}),
				}).Create(&q).Error; err != nil {
					return fmt.Errorf("seed quest %s: %w", q.Slug, err)
				}
			}
			slog.Info("seed complete", "games", len(seedGames), "quests", len(seedQuests))
			return nil
		},
	}
}

func inspectCmd(cfgFile, profile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print row counts per table",
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, _, err := openDB(*cfgFile, *profile)
			if err != nil {
				return err
			}
			tables := []struct {
				name  string
				model any
			}{
				{"users", &usersgorm.UserRecord{}},
				{"games", &gamesgorm.Game{}},
				{"game_sessions", &gamesgorm.GameSession{}},
				{"game_progress", &gamesgorm.GameProgress{}},
				{"leaderboard_entries", &lbgorm.Entry{}},
				{"quests", &questsgorm.Quest{}},
				{"user_quests", &questsgorm.UserQuest{}},
				{"xp_rules", &questsgorm.XPRule{}},
			}
			for _, t := range tables {
				var n int64
				if err := gdb.Model(t.model).Count(&n).Error; err != nil {
					fmt.Printf("%-20s error: %v\n", t.name, err)
					continue
				}
				fmt.Printf("%-20s %d\n", t.name, n)
			}
			return nil
		},
	}
}
