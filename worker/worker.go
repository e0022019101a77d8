package worker

import (
	"context"
	"strings"
	"time"

	"vocalis/core"
)

// Job statuses in the result envelope.
const (
	StatusSuccess          = "SUCCESS"
	StatusValidationFailed = "VALIDATION_FAILED"
	StatusOOM              = "OOM_ERROR"
	StatusError            = "ERROR"
)

// Job is one inference invocation.
type Job struct {
	ID    string         `json:"id"`
	Input InferenceInput `json:"input"`
}

// Usage reports token consumption for a completed generation.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Output is the successful payload of a job result.
type Output struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// Result is the job result envelope.
type Result struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Output     *Output `json:"output,omitempty"`
	Error      string  `json:"error,omitempty"`
	Retry      bool    `json:"retry"`
	DurationMs int64   `json:"duration_ms"`
}

// Generator produces text for validated inference inputs. Implementations
// wrap an OpenAI-compatible inference backend.
type Generator interface {
	Generate(ctx context.Context, input InferenceInput) (Output, error)
	// Stream sends text chunks to chunks as they arrive and returns the
	// final output. The channel is not closed by Stream.
	Stream(ctx context.Context, input InferenceInput, chunks chan<- string) (Output, error)
}

// Worker handles one inference job per invocation.
type Worker struct {
	generator Generator
	metrics   *WorkerMetrics
	logger    *core.Logger

	// cleanup runs after every job, success or failure. Backends hook cache
	// release here.
	cleanup func()
}

func NewWorker(generator Generator, logger *core.Logger) *Worker {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Worker{
		generator: generator,
		metrics:   NewWorkerMetrics(),
		logger:    logger,
	}
}

// WithCleanup registers a hook that runs on every job exit path.
func (w *Worker) WithCleanup(fn func()) *Worker {
	w.cleanup = fn
	return w
}

// Metrics exposes the worker's counters.
func (w *Worker) Metrics() *WorkerMetrics {
	return w.metrics
}

// Handle runs one job to completion and returns its result envelope.
func (w *Worker) Handle(ctx context.Context, job Job) Result {
	start := time.Now()
	w.logger.Info("job started", "job_id", job.ID)

	result := w.handle(ctx, job, nil)

	result.DurationMs = time.Since(start).Milliseconds()
	w.finish(job.ID, &result)
	return result
}

// HandleStream runs one job, forwarding text chunks as they arrive.
func (w *Worker) HandleStream(ctx context.Context, job Job, chunks chan<- string) Result {
	start := time.Now()
	w.logger.Info("streaming job started", "job_id", job.ID)

	result := w.handle(ctx, job, chunks)

	result.DurationMs = time.Since(start).Milliseconds()
	w.finish(job.ID, &result)
	return result
}

func (w *Worker) handle(ctx context.Context, job Job, chunks chan<- string) Result {
	if w.cleanup != nil {
		defer w.cleanup()
	}

	if err := job.Input.Validate(); err != nil {
		return Result{
			ID:     job.ID,
			Status: StatusValidationFailed,
			Error:  err.Error(),
			Retry:  false,
		}
	}

	var (
		output Output
		err    error
	)
	if chunks != nil {
		output, err = w.generator.Stream(ctx, job.Input, chunks)
	} else {
		output, err = w.generator.Generate(ctx, job.Input)
	}
	if err != nil {
		if isOutOfMemory(err) {
			return Result{
				ID:     job.ID,
				Status: StatusOOM,
				Error:  err.Error(),
				Retry:  false,
			}
		}
		return Result{
			ID:     job.ID,
			Status: StatusError,
			Error:  err.Error(),
			Retry:  true,
		}
	}

	return Result{
		ID:     job.ID,
		Status: StatusSuccess,
		Output: &output,
	}
}

func (w *Worker) finish(jobID string, result *Result) {
	success := result.Status == StatusSuccess
	w.metrics.Record(success, time.Duration(result.DurationMs)*time.Millisecond)
	w.logger.Info("job finished",
		"job_id", jobID,
		"status", result.Status,
		"duration_ms", result.DurationMs,
		"retry", result.Retry,
	)
}

// isOutOfMemory classifies backend errors that indicate GPU memory
// exhaustion. Retrying those on the same worker cannot succeed.
func isOutOfMemory(err error) bool {
	msg := err.Error()
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "out of memory") ||
		strings.Contains(msg, "OOM") ||
		strings.Contains(msg, "CUDA")
}
