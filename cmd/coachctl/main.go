package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jackc/pgx/v5/pgxpool"

	"habitCoachAPI/internal/config"
	"habitCoachAPI/internal/db"
	"habitCoachAPI/internal/logger"
	"habitCoachAPI/internal/textgen"
	"habitCoachAPI/services"
)

// appContext is handed to every command's Run method.
type appContext struct {
	cfg  *config.Config
	pool *pgxpool.Pool
	log  *logger.Logger
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(app *appContext) error {
	applied, err := db.Migrate(context.Background(), app.pool)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Println("schema is up to date")
		return nil
	}
	fmt.Printf("applied migrations: %v\n", applied)
	return nil
}

type RecomputeStreaksCmd struct{}

func (c *RecomputeStreaksCmd) Run(app *appContext) error {
	n, err := services.NewHabitService(app.pool, app.log).RecomputeAllStreaks(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("recomputed %d habits\n", n)
	return nil
}

type GenerateSuggestionsCmd struct {
	ClerkID string `help:"Clerk user id." required:""`
}

func (c *GenerateSuggestionsCmd) Run(app *appContext) error {
	ctx := context.Background()
	u, err := services.NewUserService(app.pool, app.log).FindByClerkID(ctx, c.ClerkID)
	if err != nil {
		return err
	}
	pending, err := services.NewCoachService(app.pool, app.log).Generate(ctx, u)
	if err != nil {
		return err
	}
	return printJSON(pending)
}

type WeeklyReviewCmd struct {
	ClerkID string `help:"Clerk user id." required:""`
	Date    string `help:"Any date in the week (YYYY-MM-DD); defaults to the user's today."`
	Refresh bool   `help:"Ignore the cached review."`
}

func (c *WeeklyReviewCmd) Run(app *appContext) error {
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.AITimeout+30*time.Second)
	defer cancel()

	u, err := services.NewUserService(app.pool, app.log).FindByClerkID(ctx, c.ClerkID)
	if err != nil {
		return err
	}
	generator := textgen.NewClient(textgen.Config{
		URL:     app.cfg.AIURL,
		APIKey:  app.cfg.AIKey,
		Model:   app.cfg.AIModel,
		Timeout: app.cfg.AITimeout,
	}, app.log)
	insights := services.NewInsightService(services.NewInsightStore(app.pool), generator, app.log)

	resp, err := insights.Weekly(ctx, u, c.Date, c.Refresh)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

var CLI struct {
	Verbose bool `help:"Debug logging." short:"v"`

	Migrate             MigrateCmd             `cmd:"" help:"Apply pending database migrations."`
	RecomputeStreaks    RecomputeStreaksCmd    `cmd:"" help:"Recompute streak fields for every habit."`
	GenerateSuggestions GenerateSuggestionsCmd `cmd:"" help:"Run the suggestion rules for one user."`
	WeeklyReview        WeeklyReviewCmd        `cmd:"" help:"Compose the weekly review for one user."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("coachctl"),
		kong.Description("Maintenance commands for the habit coach API"),
		kong.UsageOnError(),
	)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	mode := "prod"
	if CLI.Verbose {
		mode = "dev"
	}
	log, err := logger.New(mode, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := kctx.Run(&appContext{cfg: cfg, pool: pool, log: log}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
