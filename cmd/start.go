package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"essync/core/loader"
	"essync/core/logger"
	"essync/core/middleware/auth"
	"essync/core/middleware/rayid"
	"essync/feature/essync"
	"essync/feature/health"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "essync/docs/swagger"
)

// @title essync API
// @version 1.0
// @description Mirrors document database records into Elasticsearch.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.basic BasicAuth
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

// verifyCacheTTL bounds how long /verify reuses a comparison.
const verifyCacheTTL = time.Minute

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the essync server",
	Long:  `Starts the HTTP server, installs the search mirror on every source database and loads all enabled features.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()
		logg := rt.logger
		zap.ReplaceGlobals(logg)

		if rt.plugin == nil {
			logg.Warn("Search mirror disabled; records will not be indexed")
		}

		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
			BodyLimit:             rt.cfg.Server.BodyLimit(),
		})

		healthSvc := health.NewService(rt.server, rt.registry(), rt.storage, rt.cfg.Storage.Bucket, rt.cfg.Search.ConfigFile, logg)

		mgr := loader.NewManager(logg)
		mgr.Register(essync.NewFeature(rt.server, rt.plugin, verifyCacheTTL, logg))
		mgr.Register(health.NewFeature(healthSvc))

		// RayID first so every log line of the request carries it.
		app.Use(rayid.New())
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			start := time.Now()
			err := c.Next()
			fields := []zap.Field{
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
				zap.Int("status", c.Response().StatusCode()),
				zap.Duration("latency", time.Since(start)),
			}
			if err != nil {
				l.Error("Request error", append(fields, zap.Error(err))...)
			} else {
				l.Info("Request completed", fields...)
			}
			return err
		})

		app.Get("/swagger/*", swagger.HandlerDefault)

		// /essync routes authenticate against the users of each database.
		app.Use("/health", auth.New(auth.Config{ApiKey: rt.cfg.Server.ApiKey}))

		if err := mgr.LoadAll(app); err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			logg.Info("Starting server", zap.String("port", rt.cfg.Server.Port))
			errCh <- app.Listen(rt.cfg.Server.Address())
		}()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sig:
		case err := <-errCh:
			return err
		}

		logg.Info("Shutting down server...")
		return app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
