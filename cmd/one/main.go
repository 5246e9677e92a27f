// Command one sends a prompt to an OpenAI- or Anthropic-style backend and
// prints free text or schema-validated JSON.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/shutdown"
)

func main() {
	ancli.SetupSlog()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		shutdown.Monitor(cancel)
	}()

	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		ancli.PrintErr(fmt.Sprintf("%v\n", err))
		os.Exit(1)
	}
}
