package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mentorix/backend/internal/config"
)

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueDocumentIngest queues one document for ingestion. MaxRetry is
// zero on purpose: a failed document lands in the error state and stays
// there until someone calls the retry endpoint, instead of being retried
// blindly against the same broken file.
func (c *Client) EnqueueDocumentIngest(payload DocumentIngestPayload) error {
	return c.enqueue(TypeDocumentIngest, payload, asynq.MaxRetry(0), asynq.Timeout(10*time.Minute))
}

// EnqueueTenantReindex queues a full re-embed of a tenant's corpus after
// an embedding model change.
func (c *Client) EnqueueTenantReindex(payload TenantReindexPayload) error {
	return c.enqueue(TypeTenantReindex, payload, asynq.MaxRetry(0), asynq.Timeout(60*time.Minute))
}

func (c *Client) enqueue(taskType string, payload any, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	if _, err := c.client.Enqueue(task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
