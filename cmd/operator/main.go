package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"academy/internal/auth"
	"academy/internal/config"
	"academy/internal/store"
)

// Operator creates a staff account for the operator API.
func main() {
	username := flag.String("username", "", "login name")
	password := flag.String("password", "", "password, at least 8 characters")
	name := flag.String("name", "", "display name")
	role := flag.String("role", auth.RoleStaff, "admin or staff")
	flag.Parse()

	if *role != auth.RoleAdmin && *role != auth.RoleStaff {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	authn := auth.NewAuthenticator(auth.NewRepository(db.Client), auth.Signer{
		Issuer: cfg.JWTIssuer,
		Key:    []byte(cfg.JWTSigningKey),
	})
	op, err := authn.CreateOperator(ctx, *username, *password, *name, *role)
	if err != nil {
		log.Fatalf("create operator: %v", err)
	}
	fmt.Printf("created operator %s (%s, %s)\n", op.Username, op.ID, op.Role)
}
