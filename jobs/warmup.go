package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/gatehouse-io/gatehouse/internal/jobs"
	"github.com/gatehouse-io/gatehouse/internal/rbac"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// CacheWarmupJob pre-populates the shared catalog entries and, optionally,
// per-subject grant sets so the first authorization check after a deploy or
// cache flush does not pay the cold-read cost.
type CacheWarmupJob struct {
	Service *rbac.Service
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewCacheWarmupJob wires dependencies for the warmup handler.
func NewCacheWarmupJob(service *rbac.Service, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *CacheWarmupJob {
	return &CacheWarmupJob{
		Service: service,
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes cache warmup tasks.
func (j *CacheWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("cache warmup: handler not configured")
	}
	var payload CacheWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger()
	start := j.now()
	tracker := j.metrics().Track(TaskCacheWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	logger.Info("starting cache warmup")

	if err := j.warmCatalog(ctx); err != nil {
		logger.Error("warm catalog", slog.Any("error", err))
		resultErr = err
		return err
	}

	subjects := payload.SubjectIDs
	source := "payload"
	if len(subjects) == 0 {
		source = "recent"
		var err error
		subjects, err = j.recentSubjects(ctx, payload.RecentWindow)
		if err != nil {
			logger.Error("load recent subjects", slog.Any("error", err))
			resultErr = err
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, id := range subjects {
		g.Go(func() error {
			_, err := j.Service.GetAllPermissions(gctx, rbac.SubjectID(id))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("warm subjects", slog.Any("error", err))
		resultErr = err
		return err
	}
	j.metrics().AddWarmedSubjects(source, len(subjects))

	logger.Info("completed cache warmup",
		slog.Int("subjects", len(subjects)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *CacheWarmupJob) warmCatalog(ctx context.Context) error {
	if _, err := j.Service.AllRoles(ctx, true); err != nil {
		return err
	}
	if _, err := j.Service.AllRoles(ctx, false); err != nil {
		return err
	}
	if _, err := j.Service.AllPermissions(ctx, true); err != nil {
		return err
	}
	if _, err := j.Service.AllGroups(ctx, true); err != nil {
		return err
	}
	if _, err := j.Service.DefaultRole(ctx); err != nil && !errors.Is(err, rbac.ErrNotFound) {
		return err
	}
	return nil
}

// recentSubjects returns subjects granted a role or a direct permission
// inside the window, most recently first.
func (j *CacheWarmupJob) recentSubjects(ctx context.Context, window string) ([]int64, error) {
	if j.Pool == nil {
		return nil, nil
	}
	since, err := time.ParseDuration(window)
	if err != nil || since <= 0 {
		since = 720 * time.Hour
	}
	cutoff := j.now().Add(-since)
	rows, err := j.Pool.Query(ctx, `
		SELECT user_id FROM (
			SELECT user_id, max(created_at) AS granted_at FROM role_user GROUP BY user_id
			UNION ALL
			SELECT user_id, max(created_at) FROM permission_user GROUP BY user_id
		) grants
		WHERE granted_at > $1
		GROUP BY user_id
		ORDER BY max(granted_at) DESC
		LIMIT 1000`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (j *CacheWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCacheWarmup))
	}
	return slog.Default().With(slog.String("job", TaskCacheWarmup))
}

func (j *CacheWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CacheWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
