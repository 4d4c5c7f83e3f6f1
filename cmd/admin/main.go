package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"kindred/backend/internal/admin"
	"kindred/backend/internal/analysis"
	"kindred/backend/internal/chathub"
	"kindred/backend/internal/config"
	"kindred/backend/internal/guard"
	"kindred/backend/internal/models"
	"kindred/backend/internal/moderation"
	"kindred/backend/internal/storage"
	"kindred/backend/internal/telegram"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const usage = `Usage: admin <command> [args]

Commands:
  requests [status]              list help requests
  rooms [active]                 list rooms
  messages <room_id>             print a room log
  delete-message <room_id> <id>  delete one message
  reports                        list open reports
  resolve-report <report_id>     resolve (delete) a report
  bans                           list suspensions
  unban <client_id>              lift a suspension
  journal [user_id]              list journal entries
  scan-journal [since RFC3339]   scan journals for crisis terms
  delete-echo <id>               delete a community echo`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})

	s := storage.NewStorageService(db)
	// зміни розходяться по запущених серверах через relay
	relay := chathub.NewRelay(chathub.NewHub(), rdb, chathub.DefaultRelayChannel)
	var alerter moderation.Alerter
	if cfg.TelegramBotToken != "" {
		if bot, err := telegram.NewBot(cfg.TelegramBotToken); err == nil {
			alerter = telegram.NewNotifier(bot, cfg.TelegramAdminChatID, cfg.TelegramSpecialistChatID)
		} else {
			log.Printf("WARNING: Telegram alerts disabled: %v", err)
		}
	}
	mod := moderation.NewService(s, moderation.NewRedisSuspensionStore(rdb), alerter, relay)
	console := admin.NewConsole(s, nil, relay, mod, analysis.NewScanner(guard.Default()))

	if err := run(context.Background(), console, os.Args[1], os.Args[2:]); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run(ctx context.Context, c *admin.Console, command string, args []string) error {
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s needs %d argument(s)\n\n%s", command, n, usage)
		}
		return nil
	}

	switch command {
	case "requests":
		return printJSON(c.Requests(ctx, models.RequestStatus(arg(0))))
	case "rooms":
		return printJSON(c.Rooms(ctx, arg(0) == "active"))
	case "messages":
		if err := need(1); err != nil {
			return err
		}
		return printJSON(c.RoomMessages(ctx, args[0]))
	case "delete-message":
		if err := need(2); err != nil {
			return err
		}
		id, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid message id: %w", err)
		}
		if err := c.DeleteMessage(ctx, args[0], uint(id)); err != nil {
			return err
		}
		fmt.Printf("Message %d deleted.\n", id)
	case "reports":
		return printJSON(c.Reports(ctx))
	case "resolve-report":
		if err := need(1); err != nil {
			return err
		}
		if err := c.ResolveReport(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Report %s resolved.\n", args[0])
	case "bans":
		return printJSON(c.Bans(ctx))
	case "unban":
		if err := need(1); err != nil {
			return err
		}
		if err := c.LiftBan(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Client %s has been unbanned.\n", args[0])
	case "journal":
		return printJSON(c.Journal(ctx, arg(0)))
	case "scan-journal":
		var since time.Time
		if raw := arg(0); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return fmt.Errorf("invalid since: %w", err)
			}
			since = t
		}
		flags, err := c.ScanJournal(ctx, since)
		if err != nil {
			return err
		}
		printFlags(flags)
	case "delete-echo":
		if err := need(1); err != nil {
			return err
		}
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid echo id: %w", err)
		}
		if err := c.DeleteEcho(ctx, uint(id)); err != nil {
			return err
		}
		fmt.Printf("Echo %d deleted.\n", id)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}
	return nil
}

func printJSON(v interface{}, err error) error {
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printFlags(flags []analysis.Flag) {
	if len(flags) == 0 {
		fmt.Println("No crisis terms found.")
		return
	}
	for _, f := range flags {
		fmt.Printf("%s  user=%s entry=%d term=%q\n    %s\n", f.Timestamp.Format(time.RFC3339), f.UserID, f.EntryID, f.Term, f.Excerpt)
	}
}
