package utils

import (
	"time"

	"go.uber.org/zap/zapcore"
)

type stopwatchMark struct {
	time  time.Time
	label string
}

type StopwatchSplit struct {
	Label    string
	Duration time.Duration
}

// Stopwatch records labelled marks from its creation. It logs as an object of
// label to time since the previous mark, plus the total.
type Stopwatch struct {
	start time.Time
	marks []stopwatchMark
}

func NewStopwatch() *Stopwatch {
	return &Stopwatch{start: time.Now()}
}

func (s *Stopwatch) Mark(label string) {
	s.marks = append(s.marks, stopwatchMark{
		time:  time.Now(),
		label: label,
	})
}

func (s *Stopwatch) Splits() []StopwatchSplit {
	splits := make([]StopwatchSplit, 0, len(s.marks))
	prev := s.start
	for _, m := range s.marks {
		splits = append(splits, StopwatchSplit{
			Label:    m.label,
			Duration: m.time.Sub(prev),
		})
		prev = m.time
	}
	return splits
}

// Elapsed is the time from start to the last mark.
func (s *Stopwatch) Elapsed() time.Duration {
	if len(s.marks) == 0 {
		return 0
	}
	return s.marks[len(s.marks)-1].time.Sub(s.start)
}

func (s *Stopwatch) MarshalLogObject(e zapcore.ObjectEncoder) error {
	for _, split := range s.Splits() {
		e.AddDuration(split.Label, split.Duration)
	}
	e.AddDuration("total", s.Elapsed())
	return nil
}
