package service

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/julianstephens/tally/internal/models"
)

// JSONSink writes each batch of summaries as one indented JSON document
type JSONSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{w: w}
}

func (s *JSONSink) Publish(_ context.Context, summaries []models.HabitSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}

// SinkFunc adapts a function to InsightSink
type SinkFunc func(ctx context.Context, summaries []models.HabitSummary) error

func (f SinkFunc) Publish(ctx context.Context, summaries []models.HabitSummary) error {
	return f(ctx, summaries)
}
