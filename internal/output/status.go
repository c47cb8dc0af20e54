package output

import (
	"time"

	"github.com/aryankumar/fanout/internal/executor"
	"github.com/samber/lo"
)

// StatusRow is the result of one operation against one target
type StatusRow struct {
	Target string

	// Detail is shown for successful targets, e.g. a server version
	Detail string

	// Err is nil for successful targets
	Err error

	Attempts int
	Duration time.Duration
}

// OK reports whether the target succeeded
func (r StatusRow) OK() bool {
	return r.Err == nil
}

// statusView is how a StatusRow is encoded as JSON or YAML
type statusView struct {
	Target   string `json:"target" yaml:"target"`
	Status   string `json:"status" yaml:"status"`
	Detail   string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
	Attempts int    `json:"attempts" yaml:"attempts"`
	Duration string `json:"duration" yaml:"duration"`
}

func (r StatusRow) view() statusView {
	v := statusView{
		Target:   r.Target,
		Status:   r.status(),
		Detail:   r.Detail,
		Attempts: r.Attempts,
		Duration: r.Duration.Round(time.Millisecond).String(),
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

func (r StatusRow) status() string {
	if r.OK() {
		return "success"
	}
	return "failed"
}

// SummarizeStatus aggregates rows the same way executor.Summarize
// aggregates outcomes
func SummarizeStatus(rows []StatusRow) executor.Summary {
	outcomes := lo.Map(rows, func(r StatusRow, i int) executor.Outcome[string, string] {
		return executor.Outcome[string, string]{
			Index:    i,
			Item:     r.Target,
			Value:    r.Detail,
			Err:      r.Err,
			Attempts: r.Attempts,
			Duration: r.Duration,
		}
	})
	return executor.Summarize(outcomes)
}
