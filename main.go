package main

import (
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Jooldo/zarify-sub003/internal/api"
	"github.com/Jooldo/zarify-sub003/internal/config"
	"github.com/Jooldo/zarify-sub003/internal/database"
	"github.com/Jooldo/zarify-sub003/internal/events"
	"github.com/Jooldo/zarify-sub003/internal/metrics"
	"github.com/Jooldo/zarify-sub003/internal/models"
	"github.com/Jooldo/zarify-sub003/internal/services"
	"github.com/Jooldo/zarify-sub003/internal/store"
	"github.com/Jooldo/zarify-sub003/internal/utils"
)

func main() {
	// Загружаем переменные окружения из .env файла (если существует)
	// Игнорируем ошибку, если файл не найден (для production окружений)
	if err := godotenv.Load(); err != nil {
		log.Printf("ℹ️ .env файл не найден, используем переменные окружения системы")
	} else {
		log.Printf("✅ Переменные окружения загружены из .env файла")
	}

	cfg := config.Load()

	// Хранилище: PostgreSQL или память процесса (разработка без БД)
	var st store.Store
	if cfg.DatabaseURL != "" {
		log.Printf("📋 DATABASE_URL установлен: %s", maskURL(cfg.DatabaseURL))
		db, err := database.ConnectPostgres(cfg.DatabaseURL, database.PoolConfig{
			MaxOpenConns: cfg.DBMaxOpenConns,
			MaxIdleConns: cfg.DBMaxIdleConns,
			LogSQL:       cfg.DBLogSQL,
		})
		if err != nil {
			log.Fatalf("❌ PostgreSQL connection failed: %v", err)
		}
		defer database.ClosePostgres(db)

		if err := models.AutoMigrate(db); err != nil {
			log.Fatalf("❌ Migration failed: %v", err)
		}
		log.Println("✅ Database migrations completed")
		st = store.NewPostgresStore(db)
	} else {
		log.Printf("⚠️ DATABASE_URL не установлен, используется хранилище в памяти (данные не сохраняются)")
		st = store.NewMemoryStore()
	}

	// Метаданные кэша пересчета: Redis (с поддержкой Sentinel) или память процесса
	var cacheStore services.CacheMetadataStore
	redisClient, err := database.ConnectRedis(cfg.RedisURL, cfg.RedisSentinelAddrs, cfg.RedisMasterName)
	if err != nil {
		log.Printf("⚠️ Redis connection failed: %v (кэш пересчета в памяти процесса)", err)
		cacheStore = services.NewMemoryCacheMetadataStore()
	} else {
		defer database.CloseRedis(redisClient)
		cacheStore = services.NewRedisCacheMetadataStore(utils.NewRedisClient(redisClient), 2*cfg.CacheStaleness)
	}

	// Доменные события
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.KafkaBrokers != "" {
		kafkaPublisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaEventsTopic, cfg.KafkaUsername, cfg.KafkaPassword, cfg.KafkaCACert)
		if err != nil {
			log.Printf("⚠️ Kafka publisher не запущен: %v", err)
		} else {
			publisher = kafkaPublisher
		}
	} else {
		log.Printf("⚠️ KAFKA_BROKERS не установлен, события не публикуются")
	}
	defer publisher.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Порядок этапов: файл или таблица manufacturing_steps
	var stepOrder store.StepOrderProvider = st
	if cfg.StepOrderConfigFile != "" {
		provider, err := services.LoadStepOrderFile(cfg.StepOrderConfigFile)
		if err != nil {
			log.Fatalf("❌ Step order config: %v", err)
		}
		stepOrder = provider
		log.Printf("✅ Порядок этапов загружен из %s", cfg.StepOrderConfigFile)
	}

	cascade := services.NewRequirementsService(st, publisher, m)
	detector := services.NewChangeDetectionService(st, cacheStore, cfg.CacheStaleness, m)
	mrpService := services.NewMRPService(st, cascade, detector)
	log.Printf("✅ MRP service initialized (staleness: %v)", cfg.CacheStaleness)

	numbers := services.NewOrderNumberService(st, cfg.OrderNumberMaxAttempts, services.Backoff{
		Base:   cfg.OrderNumberBackoffBase,
		Max:    cfg.OrderNumberBackoffMax,
		Jitter: services.RandomJitter,
	}, m)
	stepService := services.NewStepInstanceService(st, stepOrder, publisher, m)
	manufacturingService := services.NewManufacturingService(st, numbers, stepService, publisher)
	lineageService := services.NewLineageService(st)
	log.Printf("✅ Manufacturing service initialized (max attempts: %d)", cfg.OrderNumberMaxAttempts)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := api.NewRouter(api.RouterDeps{
		Tenants:       st,
		MRP:           api.NewMRPController(mrpService),
		Manufacturing: api.NewManufacturingController(manufacturingService, stepService, lineageService),
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	port := cfg.ServerPort
	log.Printf("🚀 Server starting on port %s", port)
	log.Printf("📡 API доступен на http://0.0.0.0:%s/api/v1", port)
	if err := r.Run("0.0.0.0:" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// maskURL скрывает пароль в URL подключения
func maskURL(raw string) string {
	idx := strings.Index(raw, "@")
	schemeIdx := strings.Index(raw, "://")
	if idx > 0 && schemeIdx > 0 && schemeIdx < idx {
		return raw[:schemeIdx+3] + "***@" + raw[idx+1:]
	}
	return raw
}
