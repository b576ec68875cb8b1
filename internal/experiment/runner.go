package experiment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chaos-shop/internal/events"
	"chaos-shop/internal/logger"
)

// Verdict は実験の最終判定
type Verdict string

const (
	VerdictCompleted Verdict = "completed" // 定常状態が前後ともに成立
	VerdictDeviated  Verdict = "deviated"  // メソッド実行後に定常状態が崩れた
	VerdictAborted   Verdict = "aborted"   // 実行前から定常状態が不成立
	VerdictFailed    Verdict = "failed"    // メソッド実行中にエラー
)

// StepResult はアクティビティ1つの実行結果
type StepResult struct {
	Activity  string        `json:"activity"`
	Type      string        `json:"type"`
	OK        bool          `json:"ok"`
	Output    any           `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Journal は実験1回分の実行記録
type Journal struct {
	RunID       string        `json:"run_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     time.Time     `json:"ended_at"`
	Duration    time.Duration `json:"duration"`

	SteadyBefore []StepResult `json:"steady_state_before,omitempty"`
	Run          []StepResult `json:"run,omitempty"`
	SteadyAfter  []StepResult `json:"steady_state_after,omitempty"`
	Rollbacks    []StepResult `json:"rollbacks,omitempty"`

	Verdict Verdict `json:"verdict"`
}

// Runner は実験を実行しジャーナルを生成する
type Runner struct {
	executor *Executor
	bus      *events.Bus
}

// NewRunner は新しいRunnerを作成する
func NewRunner(executor *Executor) *Runner {
	return &Runner{executor: executor}
}

// SetEventBus はイベント発行先を設定する
func (r *Runner) SetEventBus(bus *events.Bus) {
	r.bus = bus
}

// Run は実験を1回実行する
// 定常状態の事前検証に失敗した場合はメソッドを実行せずabortedとする
// ロールバックは常に実行される
func (r *Runner) Run(ctx context.Context, exp *Experiment) *Journal {
	journal := &Journal{
		RunID:       uuid.NewString(),
		Title:       exp.Title,
		Description: exp.Description,
		StartedAt:   time.Now(),
	}

	logger.Info("", "Experiment started: %s (run %s)", exp.Title, journal.RunID)
	r.publish(events.NewExperimentStartedEvent(exp.Title, journal.RunID))

	defer func() {
		journal.EndedAt = time.Now()
		journal.Duration = journal.EndedAt.Sub(journal.StartedAt)
		logger.Info("", "Experiment finished: %s verdict=%s", exp.Title, journal.Verdict)
		r.publish(events.NewExperimentCompletedEvent(exp.Title, journal.RunID, string(journal.Verdict)))
	}()

	// 事前の定常状態検証
	if exp.SteadyState != nil {
		var before bool
		journal.SteadyBefore, before = r.runProbes(ctx, journal.RunID, exp.SteadyState.Probes)
		if !before {
			logger.Warn("", "Steady state does not hold before the method, aborting")
			journal.Verdict = VerdictAborted
			journal.Rollbacks = r.runActivities(ctx, journal.RunID, exp.Rollbacks)
			return journal
		}
	}

	// メソッド実行
	journal.Run = r.runActivities(ctx, journal.RunID, exp.Method)
	methodFailed := false
	for _, res := range journal.Run {
		if res.Error != "" {
			methodFailed = true
			break
		}
	}

	// 事後の定常状態検証
	deviated := false
	if exp.SteadyState != nil {
		var after bool
		journal.SteadyAfter, after = r.runProbes(ctx, journal.RunID, exp.SteadyState.Probes)
		deviated = !after
	}

	// ロールバックは結果に関わらず実行する
	journal.Rollbacks = r.runActivities(ctx, journal.RunID, exp.Rollbacks)

	switch {
	case deviated:
		journal.Verdict = VerdictDeviated
	case methodFailed:
		journal.Verdict = VerdictFailed
	default:
		journal.Verdict = VerdictCompleted
	}
	return journal
}

// runProbes はプローブ群を実行し、全て成立したかを返す
func (r *Runner) runProbes(ctx context.Context, runID string, probes []Activity) ([]StepResult, bool) {
	results := make([]StepResult, 0, len(probes))
	allOK := true

	for _, p := range probes {
		res := r.runOne(ctx, runID, p)
		results = append(results, res)
		if !res.OK {
			allOK = false
		}
	}
	return results, allOK
}

// runActivities はアクティビティ群を順に実行する
func (r *Runner) runActivities(ctx context.Context, runID string, activities []Activity) []StepResult {
	results := make([]StepResult, 0, len(activities))
	for _, a := range activities {
		results = append(results, r.runOne(ctx, runID, a))
	}
	return results
}

func (r *Runner) runOne(ctx context.Context, runID string, a Activity) StepResult {
	res := StepResult{
		Activity:  a.Name,
		Type:      a.Type,
		StartedAt: time.Now(),
	}

	output, ok, err := r.executor.Run(ctx, a)
	res.Duration = time.Since(res.StartedAt)
	res.Output = output
	res.OK = ok
	if err != nil {
		res.Error = err.Error()
		logger.Warn("", "Activity %s failed: %v", a.Name, err)
	} else {
		logger.Debug("", "Activity %s done: ok=%v", a.Name, ok)
	}

	r.publish(events.NewExperimentStepEvent(runID, a.Name, res.OK))
	return res
}

func (r *Runner) publish(e events.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}
