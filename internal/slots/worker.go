package slots

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
)

// GenerateSlotsArgs asks the generator to fill the schedule. WeeksAhead of
// zero means the configured default horizon.
type GenerateSlotsArgs struct {
	WeeksAhead int `json:"weeks_ahead"`
}

func (GenerateSlotsArgs) Kind() string { return "generate_slots" }

// GenerateWorker runs the slot generator off the job queue; the periodic
// scheduler enqueues one of these per interval.
type GenerateWorker struct {
	river.WorkerDefaults[GenerateSlotsArgs]
	generator *Generator
	logger    *slog.Logger
}

func NewGenerateWorker(g *Generator, logger *slog.Logger) *GenerateWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerateWorker{generator: g, logger: logger}
}

func (w *GenerateWorker) Work(ctx context.Context, job *river.Job[GenerateSlotsArgs]) error {
	created, err := w.generator.Generate(ctx, job.Args.WeeksAhead)
	if err != nil {
		return fmt.Errorf("generate slots: %w", err)
	}
	w.logger.Info("slot generation run", "created", created)
	return nil
}
