package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Mints a 24h access token for local testing. In deployment tokens come from
// the identity gateway; this binary only exists so curl and the smoke script
// can talk to a dev instance.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	reviewerId := uuid.New()
	if len(os.Args) > 1 {
		parsed, err := uuid.Parse(os.Args[1])
		if err != nil {
			log.Fatalf("Error: invalid reviewer id %q: %v", os.Args[1], err)
		}
		reviewerId = parsed
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("Error: JWT_SECRET is not set")
	}

	claims := jwt.MapClaims{
		"user_id": reviewerId.String(),
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(secret))
	if err != nil {
		log.Fatalf("Error: failed to sign token: %v", err)
	}

	log.Printf("Reviewer ID: %s", reviewerId)
	fmt.Println(signedToken)
}
