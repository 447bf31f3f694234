// File: cmd/seed/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"telegram-relay-subscription/internal/config"
	pg "telegram-relay-subscription/internal/infra/db/postgres"
	"telegram-relay-subscription/internal/infra/logging"
	"telegram-relay-subscription/internal/usecase"
)

type planSpec struct {
	Name  string
	Days  int
	Price float64
}

var defaultPlans = []planSpec{
	{"Weekly", 7, 99},
	{"Monthly", 30, 299},
	{"Quarterly", 90, 799},
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	force := flag.Bool("force", false, "seed even when plans already exist")
	var specs []planSpec
	flag.Func("plan", "plan to create as \"name | days | price\" (repeatable)", func(s string) error {
		name, days, price, err := usecase.ParsePlanSpec(s)
		if err != nil {
			return fmt.Errorf("plan %q: want \"name | days | price\": %w", s, err)
		}
		specs = append(specs, planSpec{Name: name, Days: days, Price: price})
		return nil
	})
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	planUC := usecase.NewPlanUseCase(pg.NewPostgresPlanRepo(pool), logger)

	existing, err := planUC.List(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("list plans")
	}
	if len(existing) > 0 && !*force {
		fmt.Printf("%d plans already present. No changes (use -force to add more).\n", len(existing))
		for _, p := range existing {
			fmt.Printf("  - %s (days=%d, price=%.2f)\n", p.Name, p.DurationDays, p.Price)
		}
		return
	}

	if len(specs) == 0 {
		specs = defaultPlans
	}
	for _, s := range specs {
		p, err := planUC.Create(ctx, s.Name, s.Days, s.Price)
		if err != nil {
			logger.Fatal().Err(err).Str("plan", s.Name).Msg("create plan")
		}
		fmt.Printf("seeded: %s (id=%s, days=%d, price=%.2f)\n", p.Name, p.ID, p.DurationDays, p.Price)
	}
	fmt.Println("Seeding complete.")
}
