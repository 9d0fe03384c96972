package geopolygonize

import (
	"fmt"
	"sync"
	"time"
)

// TimerLabel identifies one timed phase of a run.
type TimerLabel int

const (
	TimerTotal TimerLabel = iota
	TimerInput
	TimerClean
	TimerPolygonize
	TimerVectorize
	TimerUnion
	maxTimers
)

func (l TimerLabel) String() string {
	switch l {
	case TimerTotal:
		return "total"
	case TimerInput:
		return "input"
	case TimerClean:
		return "clean"
	case TimerPolygonize:
		return "polygonize"
	case TimerVectorize:
		return "vectorize"
	case TimerUnion:
		return "union"
	}
	return "unknown"
}

const maxMessages = 1000

// BuildContext accumulates per-phase timers and buffered log messages for
// one run. Step functions run concurrently across workers, so the context
// is safe for concurrent use; a phase timer accumulates the total wall
// time spent in that phase across all workers.
type BuildContext struct {
	mu      sync.Mutex
	accTime [maxTimers]time.Duration

	messages    [maxMessages]string
	numMessages int

	logEnabled   bool
	timerEnabled bool
}

// NewBuildContext returns a context with logging and timers both set to
// state.
func NewBuildContext(state bool) *BuildContext {
	return &BuildContext{
		logEnabled:   state,
		timerEnabled: state,
	}
}

// Progressf logs a progress message.
func (ctx *BuildContext) Progressf(format string, v ...interface{}) {
	ctx.log("PROG " + fmt.Sprintf(format, v...))
}

// Warningf logs a warning message.
func (ctx *BuildContext) Warningf(format string, v ...interface{}) {
	ctx.log("WARN " + fmt.Sprintf(format, v...))
}

// Errorf logs an error message.
func (ctx *BuildContext) Errorf(format string, v ...interface{}) {
	ctx.log("ERR " + fmt.Sprintf(format, v...))
}

func (ctx *BuildContext) log(msg string) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.logEnabled && ctx.numMessages < maxMessages {
		ctx.messages[ctx.numMessages] = msg
		ctx.numMessages++
	}
}

// StartTimer marks the start of a timed phase; pass the result to
// StopTimer.
func (ctx *BuildContext) StartTimer(label TimerLabel) time.Time {
	return time.Now()
}

// StopTimer accumulates the time elapsed since start into the phase timer.
func (ctx *BuildContext) StopTimer(label TimerLabel, start time.Time) {
	if !ctx.timerEnabled {
		return
	}
	delta := time.Since(start)
	ctx.mu.Lock()
	ctx.accTime[label] += delta
	ctx.mu.Unlock()
}

// AccumulatedTime returns the total accumulated time of the phase timer,
// or zero if timers are disabled.
func (ctx *BuildContext) AccumulatedTime(label TimerLabel) time.Duration {
	if !ctx.timerEnabled {
		return 0
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.accTime[label]
}

// LogCount returns the number of buffered messages.
func (ctx *BuildContext) LogCount() int {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.numMessages
}

// LogText returns buffered message i.
func (ctx *BuildContext) LogText(i int) string {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.messages[i]
}

// Summary formats the non-zero phase timers for the end-of-run report.
func (ctx *BuildContext) Summary() string {
	out := ""
	for l := TimerLabel(0); l < maxTimers; l++ {
		d := ctx.AccumulatedTime(l)
		if d == 0 {
			continue
		}
		out += fmt.Sprintf("%s: %v\n", l, d)
	}
	return out
}
