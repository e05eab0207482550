// Command tokengen prints a signed bearer token for an operator or customer id.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gozon/internal/auth"
)

func main() {
	actorID := flag.Int64("actor", 0, "staff or customer id to put in the token subject")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "HMAC signing secret (defaults to $JWT_SECRET)")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *actorID <= 0 {
		log.Fatal("-actor must be a positive id")
	}
	if *secret == "" {
		log.Fatal("a signing secret is required: pass -secret or set JWT_SECRET")
	}

	token, err := auth.NewTokens(*secret, *ttl).Issue(*actorID)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(token)
}
