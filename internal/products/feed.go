package products

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultFeedChannel is the Redis channel product snapshots are published on.
const DefaultFeedChannel = "catalog.products"

// RedisFeed publishes snapshots over Redis pub/sub for the search indexer.
type RedisFeed struct {
	client  *redis.Client
	channel string
}

// NewRedisFeed builds a RedisFeed. An empty channel selects DefaultFeedChannel.
func NewRedisFeed(client *redis.Client, channel string) *RedisFeed {
	if channel == "" {
		channel = DefaultFeedChannel
	}
	return &RedisFeed{client: client, channel: channel}
}

// Publish implements Feed.
func (f *RedisFeed) Publish(ctx context.Context, s Snapshot) error {
	if f == nil || f.client == nil {
		return nil
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("products: encode snapshot: %w", err)
	}
	return f.client.Publish(ctx, f.channel, payload).Err()
}
