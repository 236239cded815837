// Command triviactl is the operator CLI for the trivia backend.
//
// Usage:
//
//	triviactl token --user ops-1 --privileged
//	triviactl migrate --driver sqlite3 --database-url file:trivia.db
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/rl-arena/trivia-backend/internal/repository"
	"github.com/rl-arena/trivia-backend/pkg/database"
	jwtutil "github.com/rl-arena/trivia-backend/pkg/jwt"
)

// CLI defines the command-line interface.
type CLI struct {
	Token   TokenCmd   `cmd:"" help:"Issue a signed user token."`
	Migrate MigrateCmd `cmd:"" help:"Create the SQL tables if missing."`
}

// TokenCmd issues a JWT the API accepts.
type TokenCmd struct {
	User       string        `required:"" help:"User ID."`
	Name       string        `help:"Display name."`
	Privileged bool          `help:"Bypass rate limits and allow session eviction."`
	Secret     string        `required:"" env:"JWT_SECRET" help:"Signing secret."`
	TTL        time.Duration `env:"JWT_EXPIRATION" default:"24h" help:"Token lifetime."`
}

func (c *TokenCmd) Run() error {
	name := c.Name
	if name == "" {
		name = c.User
	}

	token, err := jwtutil.NewJWTManager(c.Secret, c.TTL).Generate(c.User, name, c.Privileged)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	fmt.Println(token)
	return nil
}

// MigrateCmd applies the development schema.
type MigrateCmd struct {
	Driver      string `env:"DATABASE_DRIVER" default:"postgres" enum:"postgres,sqlite3" help:"Database driver."`
	DatabaseURL string `name:"database-url" required:"" env:"DATABASE_URL" help:"Database connection string."`
}

func (c *MigrateCmd) Run() error {
	db, err := database.Connect(c.Driver, c.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := repository.EnsureSchema(ctx, db); err != nil {
		return err
	}
	fmt.Println("schema ready")
	return nil
}

func main() {
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("triviactl"),
		kong.Description("Operator tools for the trivia backend."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
