package main // Entry point package

import (
    "context"
    "log"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"
    "github.com/robfig/cron/v3"

    "github.com/edunest/hostel-allocation/internal/config"
    "github.com/edunest/hostel-allocation/internal/database"
    "github.com/edunest/hostel-allocation/internal/handler"
    "github.com/edunest/hostel-allocation/internal/queue"
    "github.com/edunest/hostel-allocation/internal/repository"
    "github.com/edunest/hostel-allocation/internal/router"
    "github.com/edunest/hostel-allocation/internal/service"
)

func main() {
    // Load .env if present; real deployments set the environment directly.
    _ = godotenv.Load()
    cfg := config.Load()

    // Select the backing store.  MySQL is the default; the memory store
    // serves single-node and development setups without a database.
    var store service.Store
    switch cfg.StoreDriver {
    case "mysql":
        db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
        if err != nil {
            log.Fatalf("database connection failed: %v", err)
        }
        ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
        if err := database.Migrate(ctx, db); err != nil {
            cancel()
            log.Fatalf("database migration failed: %v", err)
        }
        cancel()
        store = repository.NewMySQLStore(db)
    case "memory":
        store = repository.NewMemoryStore()
    default:
        log.Fatalf("unknown STORE_DRIVER: %q", cfg.StoreDriver)
    }

    engine := service.NewEngine(store, service.NewAMQPPublisher(), cfg.TxTimeout, cfg.MaxAttempts)
    reports := service.NewReports(store)

    // Drain lifecycle events into the audit log in the background.  The
    // consumer reconnects on broker failures and never takes the API down.
    go func() {
        if err := queue.StartAllocationConsumer(); err != nil {
            log.Printf("allocation consumer stopped: %v", err)
        }
    }()

    // Nightly pass flagging allocations whose payment due date has passed
    // with a balance outstanding.
    sched := cron.New()
    if _, err := sched.AddFunc(cfg.OverdueCron, func() {
        ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
        defer cancel()
        n, err := engine.ReconcileOverdue(ctx, time.Now().UTC(), "system:overdue-reconciler")
        if err != nil {
            log.Printf("overdue reconciliation failed: %v", err)
            return
        }
        if n > 0 {
            log.Printf("overdue reconciliation flagged %d allocations", n)
        }
    }); err != nil {
        log.Fatalf("invalid OVERDUE_CRON %q: %v", cfg.OverdueCron, err)
    }
    sched.Start()

    e := echo.New()
    router.RegisterRoutes(e) // health check
    router.RegisterAPI(e,
        handler.NewAllocationHandler(engine),
        handler.NewHostelHandler(engine),
        handler.NewReportHandler(reports),
        cfg.JWTSecret,
        config.NewRedisClient(), // nil disables cache and rate limiting
    )

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s, store=%s)", addr, cfg.Env, cfg.StoreDriver)
    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
