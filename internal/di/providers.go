package di

import (
	"context"
	"fmt"
	"time"

	"SessionLens/internal/domain/models"
	drepo "SessionLens/internal/domain/repository"
	"SessionLens/internal/handler/api"
	internalrepo "SessionLens/internal/repository"
	"SessionLens/internal/services/classify"
	"SessionLens/internal/services/ingest"
	"SessionLens/internal/services/rules"
	"SessionLens/internal/services/session"
	"SessionLens/internal/services/timezone"
	"SessionLens/internal/usecase"
	"SessionLens/pkg/cache"
	pkgch "SessionLens/pkg/clickhouse"
	"SessionLens/pkg/config"
	xhttp "SessionLens/pkg/http"
	"SessionLens/pkg/http/middleware"
	pkgkafka "SessionLens/pkg/kafka"
	applogger "SessionLens/pkg/logger"
	"SessionLens/pkg/metrics"
	"SessionLens/pkg/queue"
	"SessionLens/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	maxRetainedRuns = 100
	l1CacheItems    = 64
	l1CacheTTL      = 5 * time.Minute
	initTimeout     = 10 * time.Second
)

func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

func ProvideNormalizer(cfg *config.Config, l *applogger.Logger) *timezone.Normalizer {
	return timezone.NewNormalizer(cfg.Timezone.Source, cfg.Timezone.Reference, l)
}

func ProvideSessionClassifier(cfg *config.Config) (*session.Classifier, error) {
	return session.NewClassifier([]models.SessionWindow{
		{Name: models.SessionAsia, Start: cfg.Sessions.Asia.Start, End: cfg.Sessions.Asia.End},
		{Name: models.SessionEurope, Start: cfg.Sessions.Europe.Start, End: cfg.Sessions.Europe.End},
		{Name: models.SessionNY, Start: cfg.Sessions.NY.Start, End: cfg.Sessions.NY.End},
	})
}

func ProvideIngestor(cfg *config.Config, norm *timezone.Normalizer, cls *session.Classifier, l *applogger.Logger) *ingest.Ingestor {
	loader := ingest.NewLoader(l,
		ingest.WithDelimiter([]rune(cfg.Input.Delimiter)[0]),
		ingest.WithLayout(cfg.Input.DatetimeLayout),
	)
	validator := ingest.NewValidator(ingest.Bounds{
		PriceMin:   cfg.Validation.PriceMin,
		PriceMax:   cfg.Validation.PriceMax,
		VolumeMin:  cfg.Validation.VolumeMin,
		GapMinutes: cfg.Validation.GapMinutes,
		SkipOHLC:   cfg.Validation.SkipOHLC,
	})
	return ingest.NewIngestor(loader, validator, ingest.NewEnricher(norm, cls), l)
}

func ProvideDayClassifier(cfg *config.Config, l *applogger.Logger) *classify.Classifier {
	return classify.New(l,
		classify.WithMetric(models.Metric(cfg.Classification.Metric)),
		classify.WithOutlierZ(cfg.Classification.OutlierZ),
		classify.WithMinDays(cfg.Classification.MinDays),
		classify.WithStreakMinLength(cfg.Classification.StreakMinLength),
		classify.WithATRWindow(cfg.Classification.ATRWindow),
	)
}

func ProvideRulesEngine(cfg *config.Config, l *applogger.Logger) *rules.Engine {
	r := cfg.Rules
	return rules.NewEngine(rules.Thresholds{
		MinSample: r.MinSample,
		DayOfWeek: rules.Threshold{Min: r.DayOfWeek.Min, High: r.DayOfWeek.High},
		Handoff:   rules.Threshold{Min: r.Handoff.Min, High: r.Handoff.High},
		Streak:    rules.Threshold{Min: r.Streak.Min, High: r.Streak.High},
	}, l)
}

func ProvideMetrics() *metrics.Recorder {
	return metrics.New(prometheus.DefaultRegisterer)
}

func ProvideRunRegistry() *usecase.RunRegistry {
	return usecase.NewRunRegistry(maxRetainedRuns)
}

// ProvideClickHouseClient connects only when snapshots are enabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.Snapshot.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	c := cfg.ClickHouse
	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(c.Host),
		pkgch.WithPort(c.Port),
		pkgch.WithDatabase(c.Database),
		pkgch.WithCredentials(c.User, c.Password),
		pkgch.WithHTTP(c.UseHTTP),
		pkgch.WithAsyncInsert(c.AsyncInsert, c.WaitForAsync),
		pkgch.WithTimeouts(c.DialTimeout, c.ReadTimeout, c.WriteTimeout),
		pkgch.WithMaxExecutionTime(c.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

func ProvideSnapshotStore(ch *pkgch.Client, l *applogger.Logger) (drepo.SnapshotStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewCHSnapshotStore(ch)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

func ProvideRedisCache(cfg *config.Config, l *applogger.Logger) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	rc, err := cache.NewRedisCache(ctx,
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	cleanup := func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}
	return rc, cleanup, nil
}

// ProvideResultCache layers a small in-process cache over Redis, or keeps
// results in memory only when Redis is off.
func ProvideResultCache(rc *cache.RedisCache, l *applogger.Logger) (drepo.ResultCache, func()) {
	var store cache.Store
	if rc != nil {
		store = cache.NewLayeredCache(rc, l1CacheItems, l1CacheTTL)
	} else {
		store = cache.NewMemoryCache(cache.WithMemoryMaxItems(l1CacheItems))
	}
	cleanup := func() { _ = store.Close() }
	return internalrepo.NewResultCache(store, l), cleanup
}

func ProvideResultPublisher(cfg *config.Config, l *applogger.Logger) (drepo.ResultPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	k := cfg.Kafka
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithMaxAttempts(k.MaxAttempts),
		pkgkafka.WithTimeouts(k.WriteTimeout, k.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaResultPublisher(producer, k.Topic)
	cleanup := func() {
		if err := pub.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	return pub, cleanup, nil
}

func ProvidePipeline(
	cfg *config.Config,
	ingestor *ingest.Ingestor,
	cls *classify.Classifier,
	eng *rules.Engine,
	runs *usecase.RunRegistry,
	rec *metrics.Recorder,
	snapshots drepo.SnapshotStore,
	results drepo.ResultCache,
	pub drepo.ResultPublisher,
	l *applogger.Logger,
) *usecase.Pipeline {
	opts := []usecase.PipelineOption{
		usecase.WithResultCache(results, cfg.Redis.TTL),
		usecase.WithConfigFingerprint(cache.HashKey(cfg.Fingerprint())),
	}
	if snapshots != nil {
		opts = append(opts, usecase.WithSnapshots(snapshots))
	}
	if pub != nil {
		opts = append(opts, usecase.WithPublisher(pub))
	}
	return usecase.NewPipeline(ingestor, cls, eng, runs, rec, l, opts...)
}

// ProvideRunQueue builds the Redis work queue when queued runs are enabled.
func ProvideRunQueue(cfg *config.Config, rc *cache.RedisCache, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	return queue.NewRedisQueue(l, queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
}

func ProvideRunJobs(cfg *config.Config, pipeline *usecase.Pipeline, q *queue.RedisQueue, rc *cache.RedisCache, l *applogger.Logger) *usecase.RunJobs {
	if q == nil {
		return nil
	}
	jobs := usecase.NewRunJobs(pipeline, q, internalrepo.NewJobStatusStore(rc, cfg.Queue.StatusTTL), l)
	q.Register(jobs.Job())
	return jobs
}

func ProvideRunsHandler(
	cfg *config.Config,
	l *applogger.Logger,
	pipeline *usecase.Pipeline,
	cls *session.Classifier,
	ch *pkgch.Client,
	rc *cache.RedisCache,
	jobs *usecase.RunJobs,
) *api.RunsEchoHandler {
	checks := map[string]api.HealthChecker{}
	if ch != nil {
		checks["clickhouse"] = ch
	}
	if rc != nil {
		checks["redis"] = rc
	}
	var opts []api.RunsHandlerOption
	if jobs != nil {
		opts = append(opts, api.WithJobs(jobs))
	}
	if cfg.Input.Dir != "" {
		opts = append(opts, api.WithInputDir(cfg.Input.Dir))
	}
	return api.NewRunsEchoHandler(l, pipeline, cls, checks, opts...)
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.RunsEchoHandler, rec *metrics.Recorder) *xhttp.Server {
	s := cfg.Server
	opts := []xhttp.ServerOption{
		xhttp.WithPort(s.Port),
		xhttp.WithTimeouts(s.ReadTimeout, s.WriteTimeout, s.ShutdownTimeout),
		xhttp.WithSlowThreshold(s.SlowThreshold),
		xhttp.WithMetrics(rec, cfg.Metrics.Path),
	}
	if s.RateLimit.Enabled {
		opts = append(opts, xhttp.WithRateLimit(middleware.NewTokenBucketStore(s.RateLimit.PerSecond, s.RateLimit.Burst)))
	}
	return xhttp.NewServer(l, []xhttp.Handler{h}, opts...)
}

func ProvideApp(cfg *config.Config, l *applogger.Logger, pipeline *usecase.Pipeline, srv *xhttp.Server, q *queue.RedisQueue) *server.App {
	return server.New(cfg, l, pipeline, srv, q)
}
