// Command frame-replay feeds a recorded worker transcript (one frame per
// line) through a session and prints the resulting pipeline state.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/launchdeck/launchdeck/internal/app/session"
	"github.com/launchdeck/launchdeck/internal/cli/ui"
	"github.com/launchdeck/launchdeck/internal/infrastructure/transport"
	"github.com/launchdeck/launchdeck/internal/pkg/logger"
)

func main() {
	asJSON := flag.Bool("json", false, "print the final snapshot as JSON")
	debug := flag.Bool("debug", false, "log every applied frame")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: frame-replay [-json] [-debug] <transcript.jsonl>")
		os.Exit(2)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	s := session.New(transport.NewReplay(f), session.Options{
		Logger: logger.New(logger.Config{Verbose: *debug}),
		OnComplete: func(c session.Completion) {
			if c.Success {
				fmt.Printf("deploy_complete: success %s\n", c.DeployURL)
			} else {
				fmt.Printf("deploy_complete: failed %s\n", c.Error)
			}
		},
	})
	if err := s.Run(context.Background()); err != nil {
		log.Fatalf("Replay failed: %v", err)
	}

	snap := s.Snapshot()
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			log.Fatal(err)
		}
		return
	}

	fmt.Print(ui.RenderSteps(snap))
	fmt.Printf("unknown frames: %d, malformed frames: %d\n", snap.UnknownFrames, snap.MalformedFrames)
}
