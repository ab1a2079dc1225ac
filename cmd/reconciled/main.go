package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	reconapp "github.com/cashrecon/backend/internal/application/recon"
	"github.com/cashrecon/backend/internal/domain/recon"
	"github.com/cashrecon/backend/internal/domain/shared/valueobject"
	"github.com/cashrecon/backend/internal/infrastructure/config"
	"github.com/cashrecon/backend/internal/infrastructure/event"
	"github.com/cashrecon/backend/internal/infrastructure/logger"
	"github.com/cashrecon/backend/internal/infrastructure/persistence"
	"github.com/cashrecon/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	var (
		entityFlag   string
		currencyFlag string
		washScan     bool
		migrate      bool
	)
	flag.StringVar(&entityFlag, "entity", "", "Legal entity ID to reconcile")
	flag.StringVar(&currencyFlag, "currency", "USD", "Currency to reconcile")
	flag.BoolVar(&washScan, "wash-scan", false, "Run the cross-entity wash scan after the pass")
	flag.BoolVar(&migrate, "migrate", false, "Run schema migration before the pass")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting reconciliation daemon",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("driver", cfg.Database.Driver),
	)

	// Initialize database connection
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if migrate {
		if err := db.DB.AutoMigrate(models.AllModels()...); err != nil {
			log.Fatal("Schema migration failed", zap.Error(err))
		}
		log.Info("Schema migration complete")
	}

	// Initialize unit of work and event bus
	uow := persistence.NewGormUnitOfWork(db.DB)
	eventBus := event.NewInMemoryEventBus(log)

	// Build the allocation solver from config
	var solverOpts []recon.SolverOption
	if !cfg.Recon.LPEnabled {
		solverOpts = append(solverOpts, recon.WithoutLP())
	}
	if cfg.Recon.LPCandidateBound > 0 {
		solverOpts = append(solverOpts, recon.WithLPCandidateBound(cfg.Recon.LPCandidateBound))
	}
	solver := recon.NewAllocationSolver(log, solverOpts...)

	resolver := recon.NewPolicyResolver()

	passService := reconapp.NewPassService(uow, resolver, solver, eventBus, log, reconapp.PassConfig{
		Budget:     cfg.Recon.PassBudget,
		MaxWorkers: cfg.Recon.MaxWorkers,
	})

	ctx := context.Background()

	if entityFlag != "" {
		entityID, err := uuid.Parse(entityFlag)
		if err != nil {
			log.Fatal("Invalid entity ID", zap.String("entity", entityFlag), zap.Error(err))
		}
		currency := valueobject.Currency(currencyFlag)

		result, err := passService.RunPass(ctx, entityID, currency)
		if err != nil {
			log.Fatal("Reconciliation pass failed", zap.Error(err))
		}
		printResult(result)
	}

	if washScan {
		suggestions, err := passService.RunWashScan(ctx)
		if err != nil {
			log.Fatal("Wash scan failed", zap.Error(err))
		}
		log.Info("Wash scan complete", zap.Int("suggestions", len(suggestions)))
	}

	if entityFlag == "" && !washScan && !migrate {
		flag.Usage()
		os.Exit(1)
	}
}

func printResult(result *reconapp.PassResult) {
	fmt.Printf("Pass complete for entity %s (%s)\n", result.EntityID, result.Currency)
	fmt.Printf("  movements processed: %d\n", result.Processed)
	for status, count := range result.StatusCounts {
		fmt.Printf("  %-14s %d\n", status, count)
	}
	fmt.Printf("  explained cash: %s of %s (%.1f%%)\n",
		result.ExplainedCash.StringFixed(2), result.TotalCash.StringFixed(2), result.ExplainedPercent)
	if result.Violations > 0 {
		fmt.Printf("  invariant violations: %d\n", result.Violations)
	}
	if result.Incomplete {
		fmt.Println("  pass stopped early: wall-clock budget exhausted")
	}
}
