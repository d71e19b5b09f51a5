// mint-push-token prints a Bearer JWT for the internal endpoints
// (the Pub/Sub push subscription's OIDC-less Authorization header,
// ops tooling against /pubsub/offer-import).
//
// Usage:
//   API_SECRET=... go run ./cmd/mint-push-token -subject pubsub-push -lifespan 8760h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kaspidesk/stocks_backend/utils"
)

func main() {
	subject := flag.String("subject", "pubsub-push", "sub claim identifying the caller")
	lifespan := flag.Duration("lifespan", 365*24*time.Hour, "token validity")
	flag.Parse()

	token, err := utils.JwtGenerate(*subject, *lifespan)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
