package bootstrap

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/powange/convention-de-jonglerie-sub008/adapter/out/mongodb"
	"github.com/powange/convention-de-jonglerie-sub008/adapter/out/persistence"
	"github.com/powange/convention-de-jonglerie-sub008/adapter/out/push"
	"github.com/powange/convention-de-jonglerie-sub008/adapter/out/realtime"
	"github.com/powange/convention-de-jonglerie-sub008/config"
	"github.com/powange/convention-de-jonglerie-sub008/core/port/out"
	"github.com/powange/convention-de-jonglerie-sub008/core/service/chat"
	"github.com/powange/convention-de-jonglerie-sub008/core/service/live"
	"github.com/powange/convention-de-jonglerie-sub008/core/service/notification"
	"github.com/powange/convention-de-jonglerie-sub008/infra/database"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/cache"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/crypto"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/logger"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/metrics"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/ratelimit"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/scheduler"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/workpool"
)

// Dependencies wires infrastructure into the services.
type Dependencies struct {
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	Metrics    *metrics.StreamMetrics
	Registry   *realtime.Registry
	CounterHub *realtime.CounterHub

	ChatService *chat.Service
	LiveService *live.Service
	Dispatcher  *notification.Dispatcher
	PushPool    *workpool.Pool

	SubscriptionStore out.PushSubscriptionStore
	ReportStore       out.DeliveryReportStore
	TypingLimiter     *ratelimit.SlidingWindowLimiter
}

// NewDependencies builds the dependency graph. The returned cleanup closes
// every connection and stops the background workers.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	zlog := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	// Postgres
	pool, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Error("postgres connection failed")
		return nil, nil, err
	}
	deps.DB = pool
	cleanups = append(cleanups, pool.Close)
	logger.Info("postgres connected")

	sqlDB, err := database.NewSqlx(cfg.DatabaseURL)
	if err != nil {
		cleanup()
		logger.WithError(err).Error("sqlx connection failed")
		return nil, nil, err
	}
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })

	// Redis (optional: streams work without it, caching and rate limits off)
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("redis connection failed, continuing without it")
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { redisClient.Close() })
			// Typing is keystroke-driven; cap updates per user+conversation.
			deps.TypingLimiter = ratelimit.NewSlidingWindowLimiter(redisClient, 10, 3*time.Second)
			logger.Info("redis connected")
		}
	}

	// MongoDB (optional: delivery reports off without it)
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(cfg.MongoDBURL)
		if err != nil {
			logger.WithError(err).Warn("mongodb connection failed, continuing without it")
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() {
				mongoClient.Disconnect(context.Background())
			})

			reportAdapter := mongodb.NewDeliveryReportAdapter(mongoClient.Database(cfg.MongoDBName))
			if err := reportAdapter.EnsureIndexes(context.Background()); err != nil {
				logger.WithError(err).Warn("delivery report index creation failed")
			}
			deps.ReportStore = reportAdapter
			logger.Info("mongodb connected")
		}
	}

	// Stores
	chatStore := persistence.NewChatStoreAdapter(sqlDB)
	deps.SubscriptionStore = persistence.NewPushSubscriptionAdapter(sqlDB)

	// Realtime core
	deps.Metrics = metrics.NewStreamMetrics()
	deps.Registry = realtime.NewRegistry(zlog, deps.Metrics)
	deps.CounterHub = realtime.NewCounterHub(deps.Registry, scheduler.NewTicker(), zlog)
	deps.CounterHub.Start()
	cleanups = append(cleanups, deps.CounterHub.Stop)

	// Chat
	presence := chat.NewPresenceTracker()
	deps.ChatService = chat.NewService(chatStore, deps.Registry, presence, scheduler.NewTicker(), zlog)

	// Edition live events
	var statsCache *cache.RedisCache
	if deps.Redis != nil {
		statsCache = cache.NewRedisCache(deps.Redis)
	}
	deps.LiveService = live.NewService(deps.Registry, statsCache, zlog)

	// Push dispatch
	vapidPrivate := cfg.VAPIDPrivateKey
	if cfg.EncryptionKey != "" && vapidPrivate != "" {
		enc, err := crypto.NewEncryptor([]byte(cfg.EncryptionKey))
		if err == nil {
			if decrypted, err := enc.Decrypt(vapidPrivate); err == nil {
				vapidPrivate = decrypted
			} else {
				// Key stored in the clear; keep it as-is.
				logger.Debug("VAPID private key is not encrypted, using raw value")
			}
		}
	}

	sender := push.NewWebPushSender(push.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: vapidPrivate,
		Subscriber:      cfg.VAPIDSubscriber,
	}, zlog)

	deps.PushPool = workpool.NewPool(cfg.PushWorkerCount, zlog)
	deps.PushPool.Start()
	cleanups = append(cleanups, deps.PushPool.Stop)

	deps.Dispatcher = notification.NewDispatcher(deps.SubscriptionStore, sender,
		deps.ReportStore, deps.PushPool, deps.Metrics, zlog)

	return deps, cleanup, nil
}
