package game

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Cleanup deactivates players who have gone quiet mid-game so round
// advancement stops waiting on their submissions.
type Cleanup struct {
	db            *Database
	checkInterval time.Duration
	inactiveAfter time.Duration
}

func NewCleanup(db *Database, checkInterval, inactiveAfter time.Duration) *Cleanup {
	return &Cleanup{
		db:            db,
		checkInterval: checkInterval,
		inactiveAfter: inactiveAfter,
	}
}

// Start begins the cleanup loop
func (c *Cleanup) Start(ctx context.Context) {
	logger := log.With().Str("component", "player_cleanup").Logger()
	logger.Info().
		Dur("check_interval", c.checkInterval).
		Dur("inactive_after", c.inactiveAfter).
		Msg("starting inactive player cleanup")

	ticker := time.NewTicker(c.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down inactive player cleanup")
			return
		case <-ticker.C:
			if err := c.deactivateIdlePlayers(); err != nil {
				logger.Error().Err(err).Msg("failed to deactivate idle players")
			}
		}
	}
}

func (c *Cleanup) deactivateIdlePlayers() error {
	logger := log.With().Str("component", "player_cleanup").Logger()

	cutoff := time.Now().Add(-c.inactiveAfter)
	players, err := c.db.GetInactivePlayers(cutoff)
	if err != nil {
		return err
	}
	if len(players) == 0 {
		return nil
	}

	logger.Info().Int("idle_count", len(players)).Msg("deactivating idle players")

	for _, player := range players {
		player.IsActive = false
		if err := c.db.SavePlayer(&player); err != nil {
			logger.Error().
				Err(err).
				Str("player_id", player.PlayerID).
				Msg("failed to deactivate player")
			continue
		}
		logger.Info().
			Str("player_id", player.PlayerID).
			Str("nickname", player.Nickname).
			Time("last_seen", player.LastSeenAt).
			Msg("player deactivated for inactivity")
	}

	return nil
}
