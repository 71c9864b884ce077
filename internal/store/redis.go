package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/specforge/internal/project"
	"github.com/redis/go-redis/v9"
)

const (
	projectKeyPrefix = "specforge:project:" // specforge:project:{id} -> project json
	projectIndexKey  = "specforge:projects" // set of project ids
)

// Redis stores projects as JSON documents in Redis.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, now: time.Now}
}

func projectKey(id string) string { return projectKeyPrefix + id }

func (r *Redis) List(ctx context.Context) ([]Summary, error) {
	ids, err := r.client.SMembers(ctx, projectIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		p, err := r.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(p))
	}
	sortSummaries(out)
	return out, nil
}

func (r *Redis) Get(ctx context.Context, id string) (*project.Project, error) {
	data, err := r.client.Get(ctx, projectKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	var p project.Project
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project: %w", err)
	}
	return &p, nil
}

func (r *Redis) Create(ctx context.Context, p *project.Project) (*project.Project, error) {
	out, err := prepareCreate(p, r.now())
	if err != nil {
		return nil, err
	}
	if err := r.save(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update uses optimistic locking on the project key so concurrent patches
// are not lost.
func (r *Redis) Update(ctx context.Context, id string, patch func(*project.Project) error) (*project.Project, error) {
	var out *project.Project
	key := projectKey(id)
	txf := func(tx *redis.Tx) error {
		existing, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		out, err = applyPatch(existing, patch, r.now())
		if err != nil {
			return err
		}
		data, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("failed to marshal project: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}
	for attempt := 0; attempt < 3; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("failed to update project %s: too much contention", id)
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, projectKey(id))
	pipe.SRem(ctx, projectIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) save(ctx context.Context, p *project.Project) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, projectKey(p.ID), data, 0)
	pipe.SAdd(ctx, projectIndexKey, p.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}
