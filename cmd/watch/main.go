package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"trade-watch/internal/controller"
	"trade-watch/internal/feed"
	"trade-watch/internal/logger"
	"trade-watch/internal/prompt"
	"trade-watch/internal/store"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	_ = godotenv.Load()
	must(logger.Init())

	cfg, err := store.LoadConfig("config.yaml")
	must(err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer logger.Shutdown(context.Background())

	ss := openSessionStore(ctx, cfg)
	if ss != nil {
		defer ss.Close()
	}

	st := restoreSession(ctx, ss)
	if st.APIKey == "" {
		st.APIKey = os.Getenv(cfg.APIKeyEnv)
	}

	conn := feed.NewConn(cfg.FeedURL)

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	ctl := controller.New(st, conn, ss, prompt.NewTerminal(lines, os.Stdout))

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("trade-watch ready. Type 'help' for commands.")
	for {
		select {
		case ev := <-conn.Events():
			ctl.HandleEvent(ctx, ev)
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := runCommand(ctx, ctl, line); quit {
				return
			}
		case <-sigc:
			fmt.Println("\nShutting down...")
			return
		}
	}
}
