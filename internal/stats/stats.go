// Package stats keeps per-user usage counters in Elasticsearch and
// aggregates them for the admin surface. It is collaborator glue: auth
// flows never depend on it.
package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
)

const DefaultIndex = "usage_stats"

type UsageStat struct {
	UserEmail  string    `json:"user_email"`
	Language   string    `json:"language"`
	ImageClass string    `json:"image_class"`
	Count      int       `json:"count"`
	LastUsed   time.Time `json:"last_used"`
}

type UserSummary struct {
	UserEmail  string    `json:"user_email"`
	TotalCount int       `json:"total_count"`
	LastUsed   time.Time `json:"last_used"`
}

type Store interface {
	Record(ctx context.Context, stat UsageStat) error
	Summary(ctx context.Context) ([]UserSummary, error)
}

func NewClient(url, username, password string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  username,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("es client: %w", err)
	}
	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("es info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("es info: %s: %s", res.Status(), body)
	}
	return client, nil
}

type Recorder struct {
	ES    *elasticsearch.Client
	Index string
}

func NewRecorder(es *elasticsearch.Client) *Recorder {
	return &Recorder{ES: es, Index: DefaultIndex}
}

// Record increments the (user, language, class) counter, creating the
// document on first use. The document id is derived from the key so
// Record is an idempotent-to-retry upsert.
func (r *Recorder) Record(ctx context.Context, stat UsageStat) error {
	if stat.LastUsed.IsZero() {
		stat.LastUsed = time.Now()
	}
	docID := fmt.Sprintf("%s|%s|%s", stat.UserEmail, stat.Language, stat.ImageClass)

	update := map[string]any{
		"script": map[string]any{
			"source": "ctx._source.count += params.count; ctx._source.last_used = params.last_used",
			"lang":   "painless",
			"params": map[string]any{
				"count":     stat.Count,
				"last_used": stat.LastUsed,
			},
		},
		"upsert": stat,
	}
	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("stats: marshal update: %w", err)
	}

	res, err := r.ES.Update(r.Index, docID, bytes.NewReader(body), r.ES.Update.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("stats: update: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("stats: update: %s: %s", res.Status(), raw)
	}
	return nil
}

// Summary groups totals per user across all languages and classes.
func (r *Recorder) Summary(ctx context.Context) ([]UserSummary, error) {
	query := map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"by_user": map[string]any{
				"terms": map[string]any{"field": "user_email.keyword", "size": 1000},
				"aggs": map[string]any{
					"total_count": map[string]any{"sum": map[string]any{"field": "count"}},
					"last_used":   map[string]any{"max": map[string]any{"field": "last_used"}},
				},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("stats: marshal query: %w", err)
	}

	res, err := r.ES.Search(
		r.ES.Search.WithContext(ctx),
		r.ES.Search.WithIndex(r.Index),
		r.ES.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("stats: search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("stats: search: %s: %s", res.Status(), raw)
	}

	var parsed struct {
		Aggregations struct {
			ByUser struct {
				Buckets []struct {
					Key        string `json:"key"`
					TotalCount struct {
						Value float64 `json:"value"`
					} `json:"total_count"`
					LastUsed struct {
						ValueAsString string `json:"value_as_string"`
					} `json:"last_used"`
				} `json:"buckets"`
			} `json:"by_user"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("stats: decode response: %w", err)
	}

	summary := make([]UserSummary, 0, len(parsed.Aggregations.ByUser.Buckets))
	for _, bucket := range parsed.Aggregations.ByUser.Buckets {
		entry := UserSummary{
			UserEmail:  bucket.Key,
			TotalCount: int(bucket.TotalCount.Value),
		}
		if ts, err := time.Parse(time.RFC3339, bucket.LastUsed.ValueAsString); err == nil {
			entry.LastUsed = ts
		}
		summary = append(summary, entry)
	}
	return summary, nil
}
