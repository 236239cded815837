package api

import (
	"sort"

	"github.com/rl-arena/trivia-backend/pkg/ratelimit"
)

// Rate limited commands
const (
	CommandQuiz        ratelimit.Command = "quiz"
	CommandAnswer      ratelimit.Command = "answer"
	CommandRank        ratelimit.Command = "rank"
	CommandLeaderboard ratelimit.Command = "leaderboard"
	CommandCategories  ratelimit.Command = "categories"
)

// CommandPolicy maps every command to its rate limit class.
func CommandPolicy() ratelimit.Policy {
	return ratelimit.Policy{
		Tiers: ratelimit.DefaultTiers(),
		Commands: map[ratelimit.Command]ratelimit.Class{
			CommandQuiz:        ratelimit.ClassHeavy,
			CommandAnswer:      ratelimit.ClassLight,
			CommandRank:        ratelimit.ClassMedium,
			CommandLeaderboard: ratelimit.ClassMedium,
			CommandCategories:  ratelimit.ClassLight,
		},
	}
}

// Commands lists the limited commands in name order.
func Commands() []ratelimit.Command {
	policy := CommandPolicy()
	cmds := make([]ratelimit.Command, 0, len(policy.Commands))
	for cmd := range policy.Commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i] < cmds[j] })
	return cmds
}
