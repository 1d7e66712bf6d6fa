// Package ocrpool runs OCR over chapter pages with a bounded set of workers.
package ocrpool

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"friendbot/pkg/logger"
	"friendbot/pkg/models"
)

// Recognizer extracts text from an image
type Recognizer interface {
	RecognizeText(ctx context.Context, image []byte) (string, bool, error)
}

// ScoreFunc turns recognised text into a count
type ScoreFunc func(text string) int

// PageJob is one page to recognise
type PageJob struct {
	Index int
	Page  models.Page
}

// PageResult is the outcome of a page job
type PageResult struct {
	Job      PageJob
	Found    bool
	Count    int
	Bytes    int
	Duration time.Duration
	Error    error
}

// WorkerPool manages concurrent OCR workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan PageJob
	resultQueue chan PageResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	recognizer  Recognizer
	score       ScoreFunc
	logger      logger.Logger
}

// NewWorkerPool creates a new OCR worker pool bound to ctx
func NewWorkerPool(ctx context.Context, numWorkers int, recognizer Recognizer, score ScoreFunc, log logger.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan PageJob, numWorkers*2),
		resultQueue: make(chan PageResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		recognizer:  recognizer,
		score:       score,
		logger:      log,
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting OCR workers", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the job queue, waits for the workers and closes the results
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// Abort cancels in-flight work; Stop must still be called
func (wp *WorkerPool) Abort() {
	wp.cancel()
}

// Submit queues a page job
func (wp *WorkerPool) Submit(job PageJob) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel
func (wp *WorkerPool) Results() <-chan PageResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			// drain without work so Stop can finish
			continue
		}

		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
		}
	}
}

func (wp *WorkerPool) processJob(job PageJob, workerID int) PageResult {
	start := time.Now()
	result := PageResult{Job: job}

	data, err := os.ReadFile(job.Page.Path)
	if err != nil {
		result.Error = fmt.Errorf("read page %s: %w", job.Page.Name, err)
		result.Duration = time.Since(start)
		return result
	}
	result.Bytes = len(data)

	text, found, err := wp.recognizer.RecognizeText(wp.ctx, data)
	if err != nil {
		result.Error = fmt.Errorf("recognize page %s: %w", job.Page.Name, err)
		result.Duration = time.Since(start)
		wp.logger.ErrorWithFields("OCR failed", map[string]interface{}{
			"worker_id": workerID,
			"page":      job.Page.Name,
			"error":     err.Error(),
		})
		return result
	}

	result.Found = found
	if found {
		result.Count = wp.score(text)
	}
	result.Duration = time.Since(start)

	wp.logger.DebugWithFields("Page recognised", map[string]interface{}{
		"worker_id": workerID,
		"page":      job.Page.Name,
		"found":     found,
		"count":     result.Count,
		"duration":  result.Duration,
	})
	return result
}

// Run recognises every page and returns results in page order. The first
// failure cancels the remaining work and is returned.
func Run(ctx context.Context, numWorkers int, recognizer Recognizer, score ScoreFunc, pages []models.Page, log logger.Logger) ([]PageResult, error) {
	wp := NewWorkerPool(ctx, numWorkers, recognizer, score, log)
	wp.Start()

	go func() {
		for i, p := range pages {
			if err := wp.Submit(PageJob{Index: i, Page: p}); err != nil {
				break
			}
		}
		wp.Stop()
	}()

	results := make([]PageResult, 0, len(pages))
	var firstErr error
	for r := range wp.Results() {
		if r.Error != nil && firstErr == nil {
			firstErr = r.Error
			wp.Abort()
		}
		results = append(results, r)
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Job.Index < results[j].Job.Index
	})
	return results, nil
}
