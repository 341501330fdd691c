package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abem93/progress-widgets/internal/auth"
	"github.com/abem93/progress-widgets/internal/bootstrap"
	"github.com/abem93/progress-widgets/internal/config"
	"github.com/abem93/progress-widgets/internal/routes"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer app.Close()

	if local, ok := app.Provider.(*auth.LocalProvider); ok {
		go purgeLinks(ctx, local, time.Hour)
	}

	server := fiber.New(fiber.Config{
		AppName:   "Progress Widgets",
		BodyLimit: 8 * 1024 * 1024,
	})
	server.Use(recover.New())
	server.Use(logger.New())
	// Embeds are loaded from any origin.
	server.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	routes.Setup(server, app.Handler())

	go func() {
		<-ctx.Done()
		log.Info("Shutting down...")
		if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Errorf("shutdown: %v", err)
		}
	}()

	log.Infof("Server starting on :%s", cfg.Port)
	if err := server.Listen(":" + cfg.Port); err != nil {
		log.Errorf("listen: %v", err)
	}
}

func purgeLinks(ctx context.Context, p *auth.LocalProvider, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				log.Warnf("Auth: purge magic links: %v", err)
				continue
			}
			if n > 0 {
				log.Infof("Auth: purged %d magic link(s)", n)
			}
		}
	}
}
