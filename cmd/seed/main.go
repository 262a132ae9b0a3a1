// seed creates the initial admin account. Idempotent: exits without changes if the email already exists.
// The password comes from -password or SEED_ADMIN_PASSWORD.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"account-service/internal/config"
	"account-service/internal/db"
	identityservice "account-service/internal/identity/service"
	"account-service/internal/security"
	"account-service/internal/user/domain"
	userrepo "account-service/internal/user/repository"
)

func main() {
	name := flag.String("name", "Admin", "Admin display name")
	email := flag.String("email", "admin@example.com", "Admin email")
	password := flag.String("password", os.Getenv("SEED_ADMIN_PASSWORD"), "Admin password (default $SEED_ADMIN_PASSWORD)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}
	if *password == "" {
		log.Fatal("seed: -password or SEED_ADMIN_PASSWORD is required")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	store := userrepo.NewStore(userrepo.NewPostgresRepository(conn))
	existing, err := store.GetByEmail(ctx, *email)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Printf("Seed already applied (%s exists). Skipping.", existing.Email)
		return
	}

	accounts := identityservice.NewAuthService(store, security.NewHasher(cfg.BcryptCost, 1), nil, nil, nil, cfg.ResetTTL())
	u, err := accounts.NewAccount(ctx, identityservice.RegisterInput{
		Name:            *name,
		Email:           *email,
		Password:        *password,
		ConfirmPassword: *password,
	}, domain.RoleAdmin)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if err := store.Create(ctx, u); err != nil {
		log.Fatalf("create admin: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Admin login: %s (id %s)\n", u.Email, u.ID)
}
