package executor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// CountSuccessful returns the number of outcomes without an error
func CountSuccessful[T, R any](outcomes []Outcome[T, R]) int {
	return lo.CountBy(outcomes, func(o Outcome[T, R]) bool {
		return o.Err == nil
	})
}

// CountFailed returns the number of outcomes with an error
func CountFailed[T, R any](outcomes []Outcome[T, R]) int {
	return len(outcomes) - CountSuccessful(outcomes)
}

// FilterSuccessful returns only the successful outcomes
func FilterSuccessful[T, R any](outcomes []Outcome[T, R]) []Outcome[T, R] {
	return lo.Filter(outcomes, func(o Outcome[T, R], _ int) bool {
		return o.Err == nil
	})
}

// FilterFailed returns only the failed outcomes
func FilterFailed[T, R any](outcomes []Outcome[T, R]) []Outcome[T, R] {
	return lo.Filter(outcomes, func(o Outcome[T, R], _ int) bool {
		return o.Err != nil
	})
}

// Values extracts the values of successful outcomes
func Values[T, R any](outcomes []Outcome[T, R]) []R {
	return lo.FilterMap(outcomes, func(o Outcome[T, R], _ int) (R, bool) {
		return o.Value, o.Err == nil
	})
}

// Errors extracts the errors of failed outcomes
func Errors[T, R any](outcomes []Outcome[T, R]) []error {
	return lo.FilterMap(outcomes, func(o Outcome[T, R], _ int) (error, bool) {
		return o.Err, o.Err != nil
	})
}

// SortByIndex reorders outcomes in place to match the input order
func SortByIndex[T, R any](outcomes []Outcome[T, R]) {
	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].Index < outcomes[j].Index
	})
}

// Summary provides a summary of a fan-out
type Summary struct {
	Total      int
	Successful int
	Failed     int

	// Retried counts items that needed more than one attempt
	Retried int

	AvgDuration time.Duration
	MaxDuration time.Duration
	MinDuration time.Duration
}

// Summarize creates a summary of the outcomes
func Summarize[T, R any](outcomes []Outcome[T, R]) Summary {
	s := Summary{
		Total:      len(outcomes),
		Successful: CountSuccessful(outcomes),
		Failed:     CountFailed(outcomes),
		Retried: lo.CountBy(outcomes, func(o Outcome[T, R]) bool {
			return o.Attempts > 1
		}),
	}
	if len(outcomes) == 0 {
		return s
	}

	durations := lo.Map(outcomes, func(o Outcome[T, R], _ int) time.Duration {
		return o.Duration
	})
	s.AvgDuration = lo.Sum(durations) / time.Duration(len(durations))
	s.MaxDuration = lo.Max(durations)
	s.MinDuration = lo.Min(durations)

	return s
}

// String returns a human-readable string representation of the summary
func (s Summary) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Total: %d, ", s.Total))
	sb.WriteString(fmt.Sprintf("Successful: %d, ", s.Successful))
	sb.WriteString(fmt.Sprintf("Failed: %d", s.Failed))

	if s.Retried > 0 {
		sb.WriteString(fmt.Sprintf(", Retried: %d", s.Retried))
	}

	if s.Total > 0 {
		sb.WriteString(fmt.Sprintf(", Avg: %s", s.AvgDuration.Round(time.Millisecond)))
		sb.WriteString(fmt.Sprintf(", Max: %s", s.MaxDuration.Round(time.Millisecond)))
		sb.WriteString(fmt.Sprintf(", Min: %s", s.MinDuration.Round(time.Millisecond)))
	}

	return sb.String()
}

// SuccessRate returns the success rate as a percentage (0.0 to 100.0)
func (s Summary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0.0
	}
	return float64(s.Successful) / float64(s.Total) * 100.0
}
