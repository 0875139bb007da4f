// Dev utility: mint a bearer token for a user so orders can be submitted
// and the fanout endpoint dialed without the external auth layer.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rohit02k5/QuantyX-Trading-Platform/params"
	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/auth"
)

func main() {
	user := flag.String("user", "", "user id to embed in the token")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "usage: token -user <user-id> [-ttl 24h]")
		os.Exit(1)
	}

	cfg := params.LoadFromEnv("")
	token, err := auth.Sign(cfg.JWTSecret, *user, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
