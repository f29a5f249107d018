package bot

import (
	"time"
)

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// Telegram ids allowed to use the admin commands
	AdminUserIDs map[int64]bool
	// Public URL Telegram posts updates to, including the secret path segment.
	// Empty means long polling.
	WebhookURL string
	// Long polling timeout in seconds
	PollTimeout int
	// Question counts offered in the quiz menu
	QuestionCounts []int
	// Overall time limits offered in the quiz menu, 0 is no limit
	Durations []time.Duration
	// Telegram rejects longer messages
	MaxMessageLength int
	// Users shown on the leaderboard
	LeaderboardSize int
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		AdminUserIDs:     make(map[int64]bool),
		PollTimeout:      60,
		QuestionCounts:   []int{5, 10, 15, 20},
		Durations:        []time.Duration{0, 5 * time.Minute, 10 * time.Minute, 15 * time.Minute},
		MaxMessageLength: 4000,
		LeaderboardSize:  10,
	}
}

func (c *BotConfig) allowsCount(n int) bool {
	for _, v := range c.QuestionCounts {
		if v == n {
			return true
		}
	}
	return false
}

func (c *BotConfig) allowsDuration(d time.Duration) bool {
	for _, v := range c.Durations {
		if v == d {
			return true
		}
	}
	return false
}
