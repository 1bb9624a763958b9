package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"lexmatch.backend/internal/config"
	"lexmatch.backend/pkg/jwt"
)

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], config.Load().JWT, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, cfg config.JWTConfig, out io.Writer) error {
	fs := flag.NewFlagSet("devtoken", flag.ContinueOnError)
	fs.SetOutput(out)
	user := fs.String("user", "", "user id to put in the token")
	role := fs.String("role", jwt.RoleUser, "platform role: USER or ADMIN")
	ttl := fs.Duration("ttl", 0, "token lifetime; defaults to JWT_ACCESS_EXPIRY")
	if err := fs.Parse(args); err != nil {
		return err
	}

	token, err := buildToken(cfg, *user, *role, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Authorization: Bearer %s\n", token)
	return nil
}

func validateInputs(user, role string) error {
	if strings.TrimSpace(user) == "" {
		return fmt.Errorf("-user is required")
	}
	if role != jwt.RoleUser && role != jwt.RoleAdmin {
		return fmt.Errorf("invalid role: %s (allowed: %s, %s)", role, jwt.RoleUser, jwt.RoleAdmin)
	}
	return nil
}

func buildToken(cfg config.JWTConfig, user, role string, ttl time.Duration) (string, error) {
	if err := validateInputs(user, role); err != nil {
		return "", err
	}
	if cfg.Secret == "" {
		return "", fmt.Errorf("JWT_SECRET is empty")
	}
	if ttl <= 0 {
		ttl = cfg.AccessExpiry
	}
	return jwt.NewJWTService(cfg.Secret, cfg.Issuer, ttl).GenerateToken(user, role)
}
