package ratelimit

import (
	"fmt"
	"time"
)

// Class groups commands that share the same admission limits.
type Class string

const (
	ClassHeavy  Class = "heavy"
	ClassMedium Class = "medium"
	ClassLight  Class = "light"
)

// Decision class labels that are not tiers.
const (
	LabelPrivileged = "privileged"
	LabelUnlimited  = "unlimited"
)

// Command is the name of a rate-limited user command.
type Command string

// Window is a sliding window a tier is measured over.
type Window string

const (
	WindowMinute Window = "minute"
	WindowHour   Window = "hour"
)

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	if w == WindowHour {
		return time.Hour
	}
	return time.Minute
}

// Tier holds the limits of one class. PerHour == 0 means no hourly limit.
type Tier struct {
	PerMinute int
	PerHour   int
}

// HasHourlyLimit reports whether the hourly window is enforced.
func (t Tier) HasHourlyLimit() bool {
	return t.PerHour > 0
}

// Policy maps every command to exactly one class.
type Policy struct {
	Tiers    map[Class]Tier
	Commands map[Command]Class
}

// DefaultTiers returns the stock heavy/medium/light limits.
func DefaultTiers() map[Class]Tier {
	return map[Class]Tier{
		ClassHeavy:  {PerMinute: 5, PerHour: 20},
		ClassMedium: {PerMinute: 10, PerHour: 50},
		ClassLight:  {PerMinute: 15},
	}
}

// Validate checks that every command resolves to a known, well-formed tier.
func (p Policy) Validate() error {
	for class, tier := range p.Tiers {
		if tier.PerMinute <= 0 {
			return fmt.Errorf("%w: class %q needs a positive per-minute limit", ErrInvalidPolicy, class)
		}
		if tier.PerHour < 0 {
			return fmt.Errorf("%w: class %q has a negative per-hour limit", ErrInvalidPolicy, class)
		}
	}
	for cmd, class := range p.Commands {
		if cmd == "" {
			return fmt.Errorf("%w: empty command name", ErrInvalidPolicy)
		}
		if _, ok := p.Tiers[class]; !ok {
			return fmt.Errorf("%w: command %q -> %q", ErrUnknownClass, cmd, class)
		}
	}
	return nil
}

// ClassOf returns the class a command is mapped to.
func (p Policy) ClassOf(cmd Command) (Class, bool) {
	class, ok := p.Commands[cmd]
	return class, ok
}
