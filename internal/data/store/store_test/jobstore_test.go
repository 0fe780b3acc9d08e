package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/data/redisStore"
	"github.com/akolanti/ComplianceGPT/internal/data/store"
	"github.com/akolanti/ComplianceGPT/internal/domain/jobModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/queryModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisJobStore_Lifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	jobStore := store.NewRedisJobStore(redisStore.NewTestStore(client))

	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
	jobID := "job_abc_123"

	testJob := jobModel.Job{
		Id:      jobID,
		JobType: jobModel.JobTypeQuery,
		Status:  jobModel.JobStatusComplete,
		JobPayload: jobModel.JobPayload{
			Question: "What is the solvency margin for life insurers?",
			Answer:   "150 percent",
			Citations: []queryModel.Citation{
				{DocumentID: "doc-1", Source: "Master Circular", Page: 4, Score: 0.82},
			},
		},
	}

	t.Run("Save and Get Roundtrip", func(t *testing.T) {
		if err := jobStore.SaveJob(ctx, testJob); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}

		retrievedJob, found := jobStore.GetJob(ctx, jobID)
		if !found {
			t.Fatal("Job was saved but not found in Redis")
		}
		if retrievedJob.JobPayload.Question != testJob.JobPayload.Question {
			t.Errorf("Data mismatch! Got %s, want %s",
				retrievedJob.JobPayload.Question, testJob.JobPayload.Question)
		}
		if len(retrievedJob.JobPayload.Citations) != 1 || retrievedJob.JobPayload.Citations[0].Page != 4 {
			t.Errorf("citations not kept: %+v", retrievedJob.JobPayload.Citations)
		}
	})

	t.Run("Jobs expire", func(t *testing.T) {
		ttl := mr.TTL("job:" + jobID)
		if ttl != config.RedisJobStoreTTL {
			t.Errorf("expected ttl %v, got %v", config.RedisJobStoreTTL, ttl)
		}
	})

	t.Run("Get Non-Existent Job", func(t *testing.T) {
		if _, found := jobStore.GetJob(ctx, "ghost-id"); found {
			t.Error("Expected found=false for non-existent key")
		}
	})

	t.Run("Delete Job", func(t *testing.T) {
		jobStore.DeleteJob(ctx, jobID)
		if mr.Exists("job:" + jobID) {
			t.Error("Job still exists in Redis after DeleteJob call")
		}
	})
}

func TestRedisJobStore_Race(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	jobStore := store.NewRedisJobStore(redisStore.NewTestStore(client))

	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "race-trace")
	job := jobModel.Job{Id: "race-job"}

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = jobStore.SaveJob(ctx, job)
			_, _ = jobStore.GetJob(ctx, "race-job")
		}()
	}
	wg.Wait()

	if _, found := jobStore.GetJob(ctx, "race-job"); !found {
		t.Error("expected job after concurrent saves")
	}
}

func TestInMemoryJobStore_EvictsFinishedJobs(t *testing.T) {
	jobStore := store.InitInMemoryJobStore(time.Hour)
	ctx := context.Background()

	old := jobModel.Job{Id: "old", Status: jobModel.JobStatusComplete, EndTime: time.Now().Add(-2 * time.Hour)}
	running := jobModel.Job{Id: "running", Status: jobModel.JobStatusRunning}
	if err := jobStore.SaveJob(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := jobStore.SaveJob(ctx, running); err != nil {
		t.Fatal(err)
	}

	if _, found := jobStore.GetJob(ctx, "old"); found {
		t.Error("expected finished job past its ttl to be evicted")
	}
	if _, found := jobStore.GetJob(ctx, "running"); !found {
		t.Error("expected running job to stay")
	}

	jobStore.DeleteJob(ctx, "running")
	if _, found := jobStore.GetJob(ctx, "running"); found {
		t.Error("expected deleted job to be gone")
	}
}
