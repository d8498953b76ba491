package dialer

import (
	"context"
	"fmt"
	"time"

	"voicecampaign_backend/internal/calls"
	"voicecampaign_backend/platform/config"
	"voicecampaign_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// ArtifactCollector runs one artifact collection pass for a call and
// reports the accumulated status. Satisfied by the calls service.
type ArtifactCollector interface {
	CollectArtifacts(ctx context.Context, callID string) (calls.AnalysisStatus, error)
}

// Worker consumes analysis tasks from the queue. A task succeeds only
// once every artifact is fetched; partial passes fail and are retried
// with a delay so slow provider post-processing can catch up.
type Worker struct {
	server        *asynq.Server
	mux           *asynq.ServeMux
	collector     ArtifactCollector
	campaignStore CampaignStore
	callStore     CallStore
	log           *logger.Logger
}

// NewWorker creates the analysis task worker.
func NewWorker(cfg config.RedisConfig, collector ArtifactCollector, campaignStore CampaignStore, callStore CallStore, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			return analysisRetryDelay * time.Duration(n)
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:        server,
		mux:           mux,
		collector:     collector,
		campaignStore: campaignStore,
		callStore:     callStore,
		log:           log,
	}

	mux.HandleFunc(TaskCallAnalysis, w.handleCallAnalysis)

	return w, nil
}

func (w *Worker) handleCallAnalysis(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCallAnalysisPayload(task)
	if err != nil {
		return err
	}

	status, err := w.collector.CollectArtifacts(ctx, payload.CallID)
	if err != nil {
		return fmt.Errorf("collect artifacts for %s: %w", payload.CallID, err)
	}
	if !status.IsComplete {
		return fmt.Errorf("artifacts for %s incomplete (transcript=%t recording=%t summary=%t)",
			payload.CallID, status.TranscriptFetched, status.RecordingFetched, status.SummaryFetched)
	}

	w.log.CallEvent("analysis.complete", payload.CallID, 0, "all artifacts fetched")
	w.refreshCampaignProgress(ctx, payload.CallID)
	return nil
}

// refreshCampaignProgress recomputes the owning campaign's analysis
// progress once a call's artifacts are complete. Direct calls have no
// campaign and are skipped.
func (w *Worker) refreshCampaignProgress(ctx context.Context, callID string) {
	if w.campaignStore == nil || w.callStore == nil {
		return
	}
	rec, err := w.callStore.GetByCallID(ctx, callID)
	if err != nil || rec.CampaignID == nil {
		return
	}
	if _, err := RefreshProgress(ctx, w.campaignStore, w.callStore, *rec.CampaignID); err != nil {
		w.log.DatabaseError("refresh analysis progress", err)
	}
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("analysis worker stopped", "error", err)
	}
}
