package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// OutcomeSuccess は成功時に記録する結果ラベル。
const OutcomeSuccess = "success"

// AttemptRecorder は認証試行をメトリクスに記録する。
type AttemptRecorder interface {
	RecordAuthAttempt(strategy, outcome string)
}

// Resolver は戦略名で認証戦略を選択して実行する。
type Resolver struct {
	strategies map[string]Strategy
	recorder   AttemptRecorder
}

// NewResolver はResolverを生成する。recorderはnilでもよい。
func NewResolver(recorder AttemptRecorder, strategies ...Strategy) *Resolver {
	r := &Resolver{
		strategies: make(map[string]Strategy, len(strategies)),
		recorder:   recorder,
	}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// Register は戦略を登録する。同名の戦略は上書きする。
func (r *Resolver) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Strategy は登録済みの戦略を返す。
func (r *Resolver) Strategy(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// Providers はIdP戦略をプロバイダー名順で返す。
func (r *Resolver) Providers() []*ProviderStrategy {
	var out []*ProviderStrategy
	for _, s := range r.strategies {
		if ps, ok := s.(*ProviderStrategy); ok {
			out = append(out, ps)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Resolve は指定された戦略で資格情報を検証する。
// 未登録の戦略名はInvalidInputとして失敗する。
func (r *Resolver) Resolve(ctx context.Context, name string, cred Credentials) Result {
	s, ok := r.strategies[name]
	if !ok {
		res := fail(ReasonInvalidInput, fmt.Errorf("unknown strategy %q", name))
		r.record(name, res)
		return res
	}

	res := s.Authenticate(ctx, cred)
	r.record(name, res)
	r.log(name, res)
	return res
}

func (r *Resolver) record(name string, res Result) {
	if r.recorder == nil {
		return
	}
	outcome := OutcomeSuccess
	if res.Failure != nil {
		outcome = string(res.Failure.Reason)
	}
	r.recorder.RecordAuthAttempt(name, outcome)
}

func (r *Resolver) log(name string, res Result) {
	if res.Failure == nil {
		slog.Info("authentication succeeded",
			slog.String("strategy", name),
			slog.String("user_id", res.User.ID),
		)
		return
	}

	attrs := []any{
		slog.String("strategy", name),
		slog.String("reason", string(res.Failure.Reason)),
	}
	if res.Failure.Err != nil {
		attrs = append(attrs, slog.String("error", res.Failure.Err.Error()))
	}
	if res.Failure.Reason.Kind() == KindStore {
		slog.Error("authentication failed", attrs...)
		return
	}
	slog.Warn("authentication failed", attrs...)
}
