// Command moneybook-token mints a signed identity token for local
// development and scripted API calls.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"moneybook/internal/session"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	userID := flag.String("user", "", "user id placed in the sub claim (required)")
	email := flag.String("email", "", "email claim")
	name := flag.String("name", "", "display name claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	flag.Parse()

	if *userID == "" {
		flag.Usage()
		os.Exit(2)
	}
	secret := os.Getenv("JWT_SECRET")
	if len(secret) < 32 {
		log.Fatalf("JWT_SECRET must be set and at least 32 characters")
	}

	v := session.NewVerifier(secret, os.Getenv("JWT_ISSUER"))
	token, err := v.Issue(session.Identity{UserID: *userID, Email: *email, DisplayName: *name}, *ttl)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(token)
}
