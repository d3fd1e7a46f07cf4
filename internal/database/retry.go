package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// initialBackoff は接続リトライの初回待機時間。
	initialBackoff = 500 * time.Millisecond
	// maxBackoff は接続リトライの最大待機時間。
	maxBackoff = 8 * time.Second
)

// Pinger は接続確認が可能なDBハンドル。*sql.DBが満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// CalculateBackoff は失敗回数に基づいて指数バックオフ遅延を計算する。
// 初回500ms、2倍ずつ増加、最大8秒。
func CalculateBackoff(failures int) time.Duration {
	delay := initialBackoff
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// WaitForReady はDBが応答するまで最大attempts回Pingを試行する。
// コンテナ同時起動時にDBの起動を待つために使う。
// ctxがキャンセルされた場合は即座に中断する。
func WaitForReady(ctx context.Context, db Pinger, attempts int, timeout time.Duration) error {
	return waitForReady(ctx, db, attempts, timeout, CalculateBackoff)
}

func waitForReady(ctx context.Context, db Pinger, attempts int, timeout time.Duration, backoff func(int) time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		lastErr = db.PingContext(pingCtx)
		cancel()
		if lastErr == nil {
			return nil
		}

		if i == attempts-1 {
			break
		}

		delay := backoff(i)
		slog.Warn("データベース接続に失敗しました。リトライします",
			slog.Int("attempt", i+1),
			slog.Duration("retry_in", delay),
			slog.String("error", lastErr.Error()),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to connect to database: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, lastErr)
}
