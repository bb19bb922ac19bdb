package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/beatwatch/beatwatch/handlers"
	"github.com/beatwatch/beatwatch/internal/beatmap"
	"github.com/beatwatch/beatwatch/internal/checker"
	"github.com/beatwatch/beatwatch/internal/config"
	"github.com/beatwatch/beatwatch/internal/database"
	"github.com/beatwatch/beatwatch/internal/delivery"
	"github.com/beatwatch/beatwatch/internal/subscription"
	"github.com/beatwatch/beatwatch/pkg/logger"
	"github.com/beatwatch/beatwatch/pkg/metrics"
	"github.com/beatwatch/beatwatch/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// logging first (controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mongo=%v redis=%v feed=%v discord=%v",
		cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Feed.APIKey != "", cfg.Discord.BotToken != "")

	ctx := context.Background()

	// Redis for the force-check cooldown when configured
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	// MongoDB with retry/backoff to tolerate startup races
	const maxAttempts = 5
	backoff := time.Second
	var mongoErr error
	var client *mongo.Client
	var repo *subscription.MongoRepository
	var cursor *checker.MongoCursor
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err == nil {
			db := c.Database(cfg.MongoDB.Database)
			if err := database.EnsureIndexes(ctx, db); err != nil {
				logger.Warnf("failed to ensure indexes: %v", err)
			}
			repo = subscription.NewMongoRepository(db)
			cursor = checker.NewMongoCursor(db, cfg.Checker.Backfill)
			client = c
			mongoErr = nil
			break
		}
		mongoErr = err
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, err)
		if attempt < maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	if mongoErr != nil {
		logger.Fatalf("could not connect to MongoDB after %d attempts: %v", maxAttempts, mongoErr)
	}
	defer func() { _ = client.Disconnect(ctx) }()

	svc := subscription.NewService(repo)
	feed := beatmap.NewClient(cfg.Feed.BaseURL, cfg.Feed.APIKey, cfg.Feed.Timeout)
	sink := delivery.NewDiscordSink(cfg.Discord.APIBase, cfg.Discord.BotToken, cfg.Discord.Timeout)
	orch := checker.NewOrchestrator(cursor, feed, repo, sink, cfg.Checker.CycleTimeout)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		deps := map[string]bool{
			"storage": repo != nil,
			"redis":   redisClient != nil || !cfg.RateLimit.UseRedis,
		}
		for _, ok := range deps {
			if !ok {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": time.Since(startTime).String()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": time.Since(startTime).String()})
	})

	// force-check cooldown: 1 per user per window
	window := cfg.RateLimit.CheckCooldown
	var cooldown gin.HandlerFunc
	if cfg.RateLimit.UseRedis && redisClient != nil {
		cooldown = middleware.RedisRateLimitMiddleware(redisClient, 1.0/window.Seconds(), 0, window)
	} else {
		cooldown = middleware.RateLimitMiddleware(1.0/window.Seconds(), 1)
	}

	api := r.Group("/api/v1", middleware.AuthMiddleware(cfg.JWT.Secret))
	handlers.NewSubscriptionHandler(svc, orch).Register(api, cooldown)
	handlers.NewAdminHandler(cfg.Discord.OwnerID, sink).Register(api)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// periodic checks; first one at startup mirrors the bot's on_ready check
	if cfg.Checker.RunOnStart {
		go func() {
			if err := orch.RunCycle(context.Background()); err != nil {
				logger.Errorf("startup check failed: %v", err)
			}
		}()
	}
	cronRunner, err := orch.StartSchedule(cfg.Checker.Schedule)
	if err != nil {
		logger.Fatalf("failed to start check schedule: %v", err)
	}
	defer cronRunner.Stop()

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting beatwatch on %s (schedule %q)", addr, cfg.Checker.Schedule)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
