package middleware

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/teawars/teawars-api/internal/auth"
	"github.com/teawars/teawars-api/pkg/response"
	"golang.org/x/time/rate"
)

// ActivityTracker records that a player was seen, so the idle-player
// cleanup loop does not deactivate them between actions.
type ActivityTracker interface {
	TouchPlayer(playerID string) error
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	visitors = make(map[string]*visitor)
	mu       sync.RWMutex

	// Configure limits per endpoint type
	joinLimit   = rate.Limit(10.0 / 60.0)   // 10 requests per minute
	actionLimit = rate.Limit(100.0 / 60.0)  // 100 requests per minute
	reportLimit = rate.Limit(1000.0 / 60.0) // 1000 requests per minute
)

// Cleanup old visitors periodically
func init() {
	go cleanupVisitors()
}

func getLimiter(path, clientID string) *rate.Limiter {
	mu.Lock()
	defer mu.Unlock()

	key := clientID + ":" + path
	v, exists := visitors[key]

	if !exists {
		var limit rate.Limit
		switch {
		case strings.HasSuffix(path, "/join"):
			limit = joinLimit
		case strings.HasPrefix(path, "/api/v1/production"),
			strings.HasPrefix(path, "/api/v1/market"),
			strings.HasPrefix(path, "/api/v1/rounds"):
			limit = actionLimit
		case strings.HasPrefix(path, "/api/v1/finance"):
			limit = reportLimit
		default:
			limit = rate.Inf // No limit for other paths
		}

		v = &visitor{
			limiter:  rate.NewLimiter(limit, 1), // burst of 1
			lastSeen: time.Now(),
		}
		visitors[key] = v
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func cleanupVisitors() {
	for {
		time.Sleep(time.Minute)

		mu.Lock()
		for id, v := range visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(visitors, id)
			}
		}
		mu.Unlock()
	}
}

func RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetString("playerID")
		if clientID == "" {
			clientID = c.ClientIP()
		}

		limiter := getLimiter(c.FullPath(), clientID)
		if !limiter.Allow() {
			response.BadRequest(c, "Rate limit exceeded. Please try again later.")
			c.Abort()
			return
		}

		c.Next()
	}
}

// SessionAuth validates the bearer session token issued on join, puts
// the player and game identifiers on the request context and marks the
// player as seen.
func SessionAuth(authService *auth.Service, tracker ActivityTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearerToken := strings.Split(c.GetHeader("Authorization"), " ")
		if len(bearerToken) != 2 || !strings.EqualFold(bearerToken[0], "bearer") {
			response.Unauthorized(c, "Invalid authorization header")
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(bearerToken[1])
		if err != nil {
			response.Unauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Set("playerID", claims.PlayerID)
		c.Set("gameID", claims.GameID)

		if tracker != nil {
			if err := tracker.TouchPlayer(claims.PlayerID); err != nil {
				log.Warn().Err(err).Str("player_id", claims.PlayerID).Msg("failed to record player activity")
			}
		}

		c.Next()
	}
}

// RequirePlayer rejects requests whose player_id path parameter does not
// match the session token's player. Routes without the parameter pass
// through unchanged. Must run after SessionAuth.
func RequirePlayer() gin.HandlerFunc {
	return func(c *gin.Context) {
		pathPlayer := c.Param("player_id")
		if pathPlayer != "" && pathPlayer != c.GetString("playerID") {
			response.Forbidden(c, "Session token does not belong to this player")
			c.Abort()
			return
		}

		c.Next()
	}
}
