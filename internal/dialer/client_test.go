package dialer

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type stubRedisConfig struct {
	url string
}

func (c stubRedisConfig) GetRedisURL() string      { return c.url }
func (stubRedisConfig) GetRedisTLSInsecure() bool   { return false }
func (stubRedisConfig) GetAsynqQueueName() string   { return "analysis" }
func (stubRedisConfig) GetAsynqConcurrency() int    { return 1 }

func TestEnqueueAnalysisDeduplicates(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(stubRedisConfig{url: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.EnqueueAnalysis(ctx, "uuid-1"); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	// A second enqueue for the same call collapses onto the pending
	// task instead of failing.
	if err := client.EnqueueAnalysis(ctx, "uuid-1"); err != nil {
		t.Fatalf("duplicate enqueue: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer inspector.Close()

	pending, err := inspector.ListPendingTasks("analysis")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending tasks = %d, want 1", len(pending))
	}

	payload, err := ParseCallAnalysisPayload(asynq.NewTask(pending[0].Type, pending[0].Payload))
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.CallID != "uuid-1" {
		t.Errorf("payload call id = %q, want uuid-1", payload.CallID)
	}
}

func TestEnqueueAnalysisNilClient(t *testing.T) {
	var client *Client
	if err := client.EnqueueAnalysis(context.Background(), "uuid-1"); err != nil {
		t.Fatalf("nil client enqueue: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("nil client close: %v", err)
	}
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(stubRedisConfig{url: ""}); err == nil {
		t.Fatal("expected error when redis url is missing")
	}
}
