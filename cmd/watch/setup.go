package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"trade-watch/internal/controller"
	"trade-watch/internal/logger"
	"trade-watch/internal/session"
	"trade-watch/internal/store"
	"trade-watch/internal/types"
)

// openSessionStore builds the configured session store. An unavailable
// store degrades to in-memory-only operation with a one-time warning; it
// is never fatal.
func openSessionStore(ctx context.Context, cfg *store.Config) store.SessionStore {
	switch cfg.Session.Backend {
	case "none":
		logger.Warn(ctx, "Session persistence disabled, nothing will be saved")
		return nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Session.RedisAddr,
			DB:   cfg.Session.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn(ctx, "Session store unavailable, nothing will be saved", "error", err)
			client.Close()
			return nil
		}
		return store.NewRedisStore(client)
	default:
		return store.NewFileStore(cfg.Session.StateFile)
	}
}

// restoreSession loads the stored session or starts fresh. No network is
// touched here; the feed is only dialed on an explicit connect.
func restoreSession(ctx context.Context, ss store.SessionStore) *session.State {
	if ss == nil {
		return session.NewState()
	}
	st, ok, err := ss.Restore(ctx)
	if err != nil {
		logger.Warn(ctx, "Could not restore stored session, starting fresh", "error", err)
		return session.NewState()
	}
	if !ok {
		return session.NewState()
	}
	logger.Info(ctx, "Restored session", "tracked", len(st.Tracked))
	return st
}

func readLines(r io.Reader, lines chan<- string) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines <- sc.Text()
	}
	close(lines)
}

// runCommand executes one user command. It returns true when the user
// asked to quit.
func runCommand(ctx context.Context, ctl *controller.Controller, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		printHelp()
	case "key":
		if len(args) != 1 {
			fmt.Println("usage: key <api-key>")
			return false
		}
		ctl.UpdateAPIKey(ctx, args[0])
		fmt.Println("API key updated")
	case "add":
		if len(args) != 1 {
			fmt.Println("usage: add <symbol>")
			return false
		}
		ctl.UpdatePendingSymbol(types.Symbol(args[0]))
		ctl.TrackSymbol(ctx)
	case "rm":
		if len(args) != 1 {
			fmt.Println("usage: rm <index>")
			return false
		}
		i, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Println("usage: rm <index>")
			return false
		}
		if err := ctl.UntrackAt(ctx, i); err != nil {
			fmt.Println(err)
		}
	case "list", "ls":
		printList(ctl)
	case "connect":
		_ = ctl.Connect(ctx)
	case "disconnect":
		ctl.Disconnect()
		fmt.Println("disconnected")
	case "quit", "exit":
		return true
	default:
		fmt.Printf("unknown command %q, try 'help'\n", cmd)
	}
	return false
}

func printHelp() {
	fmt.Print(`commands:
  key <api-key>   set the feed API key
  add <symbol>    track a symbol (subscribes immediately when connected)
  rm <index>      untrack the symbol at a list position
  list            show tracked symbols and their latest trades
  connect         open the feed connection
  disconnect      drop the feed connection
  quit            exit
`)
}

func printList(ctl *controller.Controller) {
	st := ctl.State()
	fmt.Printf("feed: %s\n", ctl.ConnState())
	if len(st.Tracked) == 0 {
		fmt.Println("no tracked symbols")
		return
	}
	for i, sym := range st.Tracked {
		line := fmt.Sprintf("%3d  %-10s %s", i, sym, trendMarker(st.History.Trend(sym)))
		if seq, ok := st.History.Get(sym); ok && len(seq) > 0 {
			last := seq[0]
			line += fmt.Sprintf("  %10.2f x %-10.2f %s",
				float32(last.Price), float32(last.Volume),
				time.UnixMilli(last.Time).Format("15:04:05"))
		} else {
			line += "  no trades yet"
		}
		fmt.Println(line)
	}
}

func trendMarker(t types.Trend) string {
	switch t {
	case types.TrendUp:
		return "+"
	case types.TrendDown:
		return "-"
	}
	return "="
}
