package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"marketplace-chat/config"
	"marketplace-chat/internal/auth"
	"marketplace-chat/internal/domain/user"
	redisstore "marketplace-chat/internal/redis"
	"marketplace-chat/pkg/database"
	"marketplace-chat/pkg/logger"

	"github.com/google/uuid"
)

const usage = `
Marketplace Chat - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Create or update the messaging tables and indexes
  status      Show database connection status and row counts
  seed-dev    Seed sample users and conversations, print dev credentials
  reset       Drop the messaging tables and re-run migrations (DANGEROUS)

Flags:
  -admin-email string  Admin email for seeding (default "admin@marketplace.local")
  -clients int         Number of sample clients (default 3)
  -pros int            Number of sample professionals (default 2)

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go seed-dev -clients 5
  go run cmd/migrate/main.go reset
`

func main() {
	adminEmail := flag.String("admin-email", "admin@marketplace.local", "Admin email for seeding")
	clients := flag.Int("clients", 3, "Number of sample clients")
	pros := flag.Int("pros", 2, "Number of sample professionals")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	logger.SetGlobalLogger(logger.New(cfg.LogMode))
	database.Connect(cfg)
	defer database.Close()

	switch command {
	case "up":
		runMigrationsUp()
	case "status":
		showStatus()
	case "seed-dev":
		runSeedDevelopment(cfg, &database.SeedConfig{
			AdminEmail:        *adminEmail,
			ClientCount:       *clients,
			ProfessionalCount: *pros,
			WithConversations: true,
		})
	case "reset":
		runReset()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp() {
	log.Println("Running migrations UP...")

	if err := database.RunFullMigration(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations completed successfully")
}

func showStatus() {
	log.Println("Checking database status...")

	if err := database.Ping(); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connection: OK")

	tables := []string{"users", "conversations", "messages", "notifications"}
	for _, table := range tables {
		exists, err := database.TableExists(table)
		if err != nil {
			log.Printf("Error checking table %s: %v", table, err)
			continue
		}
		if exists {
			count, _ := database.GetTableCount(table)
			log.Printf("Table %-15s exists (%d rows)", table, count)
		} else {
			log.Printf("Table %-15s does not exist", table)
		}
	}

	if err := database.HealthCheck(); err != nil {
		log.Printf("Health check warning: %v", err)
	} else {
		log.Println("Health check: PASSED")
	}
}

func runSeedDevelopment(appCfg *config.Config, cfg *database.SeedConfig) {
	log.Println("Seeding database (development mode)...")

	result, err := database.Seed(cfg)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Seed Summary:")
	log.Printf("   - Admin user: %s", result.AdminUser.Email)
	log.Printf("   - Clients: %d", len(result.Clients))
	log.Printf("   - Professionals: %d", len(result.Professionals))
	log.Printf("   - Conversations: %d", len(result.Conversations))
	log.Printf("   - Messages: %d", len(result.Messages))
	printDevCredentials(appCfg, result)
	log.Println("Development seeding completed")
}

// printDevCredentials issues 24h access tokens and, when redis is reachable,
// cookie sessions so the seeded users can call the API with either scheme.
func printDevCredentials(appCfg *config.Config, result *database.SeedResult) {
	users := append([]*user.User{result.AdminUser}, result.Clients...)
	users = append(users, result.Professionals...)

	issuer := auth.NewTokenSessionProvider(appCfg.TokenCookie, appCfg.JWTSecret, nil)
	log.Println("Development access tokens (24h):")
	for _, u := range users {
		token, err := issuer.IssueAccessToken(*u, 24*time.Hour)
		if err != nil {
			log.Printf("   - %s: %v", u.Email, err)
			continue
		}
		log.Printf("   - %-32s %s", u.Email, token)
	}

	ctx := context.Background()
	rdb := redisstore.NewClient(redisstore.Config{
		Host:     appCfg.RedisHost,
		Port:     appCfg.RedisPort,
		Password: appCfg.RedisPassword,
		DB:       appCfg.RedisDB,
	})
	defer rdb.Close()
	if err := redisstore.Ping(ctx, rdb); err != nil {
		log.Printf("Skipping cookie sessions: %v", err)
		return
	}

	sessions := redisstore.NewSessionStore(rdb, appCfg.SessionTTL)
	log.Printf("Development cookie sessions (%s):", appCfg.SessionCookie)
	for _, u := range users {
		token := uuid.NewString()
		rec := auth.SessionRecord{UserID: u.ID, Name: u.Name, Role: u.Role}
		if err := sessions.PutSession(ctx, token, rec); err != nil {
			log.Printf("   - %s: %v", u.Email, err)
			continue
		}
		log.Printf("   - %-32s %s=%s", u.Email, appCfg.SessionCookie, token)
	}
}

func runReset() {
	log.Println("WARNING: This will DROP the messaging tables and re-run migrations!")

	if err := database.DropAllTables(); err != nil {
		log.Fatalf("Failed to drop tables: %v", err)
	}

	if err := database.RunFullMigration(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Database reset completed")
}
