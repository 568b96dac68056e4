package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"bluereach_backend/internal/leadsync"
	"bluereach_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	defaultUniqueTTL = 30 * time.Minute
	taskTimeout      = 2 * time.Hour
	taskMaxRetry     = 2
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client queues sync runs for the worker. It implements leadsync.Enqueuer.
type Client struct {
	client    enqueuer
	queue     string
	uniqueTTL time.Duration
}

var _ leadsync.Enqueuer = (*Client)(nil)

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return newClient(asynq.NewClient(opt), cfg.GetAsynqQueueName(), cfg.GetSyncLockTTL()), nil
}

func newClient(c enqueuer, queue string, uniqueTTL time.Duration) *Client {
	if queue == "" {
		queue = "default"
	}
	if uniqueTTL <= 0 {
		uniqueTTL = defaultUniqueTTL
	}
	return &Client{client: c, queue: queue, uniqueTTL: uniqueTTL}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueueCampaignSync(ctx context.Context, campaignID uuid.UUID, opts leadsync.Options) (string, error) {
	task, err := NewCampaignSyncTask(campaignID, opts)
	if err != nil {
		return "", err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) EnqueueClientSync(ctx context.Context, clientID uuid.UUID, opts leadsync.Options) (string, error) {
	task, err := NewClientSyncTask(clientID, opts)
	if err != nil {
		return "", err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) EnqueuePositiveResync(ctx context.Context, scope leadsync.ResyncScope, opts leadsync.Options) (string, error) {
	task, err := NewPositiveResyncTask(scope, opts)
	if err != nil {
		return "", err
	}
	return c.enqueue(ctx, task)
}

// enqueue deduplicates on task type and payload while a matching task is
// pending or running.
func (c *Client) enqueue(ctx context.Context, task *asynq.Task) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("scheduler client not configured")
	}

	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.Unique(c.uniqueTTL),
		asynq.MaxRetry(taskMaxRetry),
		asynq.Timeout(taskTimeout),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return "", leadsync.ErrAlreadyQueued
	}
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
