package main

// Re-render the current collection manifest of one or more jobs:
//   go run ./cmd/regenerate -jobs 100,101 -concurrency 4

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"wasteops-backend/internal/audit"
	"wasteops-backend/internal/bootstrap"
	"wasteops-backend/internal/documents"
	"wasteops-backend/internal/shared/config"
	"wasteops-backend/internal/shared/telemetry"
)

type regenerator interface {
	RegenerateManifest(ctx context.Context, jobID int64, actor audit.Actor, requestID string) (documents.Document, error)
}

type failure struct {
	JobID int64
	Err   error
}

func main() {
	jobsFlag := flag.String("jobs", "", "comma-separated job ids")
	concurrency := flag.Int("concurrency", 4, "jobs regenerated in parallel")
	staffID := flag.String("staff", "", "staff id recorded in the audit trail")
	flag.Parse()

	ids, err := parseIDs(*jobsFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -jobs: %v\n", err)
		os.Exit(2)
	}

	cfg := config.Load()
	telemetry.Configure(os.Stderr, cfg.LogLevel)
	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	actor := audit.Actor{StaffID: *staffID}
	failures, err := run(ctx, app.JobsService, ids, actor, *concurrency)
	if err != nil {
		log.Fatalf("regenerate: %v", err)
	}
	for _, f := range failures {
		fmt.Fprintf(os.Stderr, "job %d: %v\n", f.JobID, f.Err)
	}
	fmt.Printf("regenerated %d of %d manifests\n", len(ids)-len(failures), len(ids))
	if len(failures) > 0 {
		os.Exit(1)
	}
}

// run regenerates every job. A failing job does not stop the others; only
// cancellation aborts the batch.
func run(ctx context.Context, svc regenerator, ids []int64, actor audit.Actor, concurrency int) ([]failure, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, concurrency))

	var (
		mu       sync.Mutex
		failures []failure
	)
	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			requestID := "regenerate-" + strconv.FormatInt(id, 10)
			doc, err := svc.RegenerateManifest(gctx, id, actor, requestID)
			if err != nil {
				mu.Lock()
				failures = append(failures, failure{JobID: id, Err: err})
				mu.Unlock()
				return nil
			}
			telemetry.Info("regenerate.manifest", map[string]any{
				"job_id":      id,
				"document_id": doc.ID,
				"size_bytes":  doc.SizeBytes,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return failures, err
	}
	return failures, nil
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	seen := map[int64]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("bad job id %q", part)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no job ids given")
	}
	return ids, nil
}
