package poll

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
)

// ErrTimeout 表示在等待时间内条件始终未满足
var ErrTimeout = errors.New("poll: condition not met before timeout")

var errPending = errors.New("poll: pending")

// Probe 返回 ok=false 表示继续等待
type Probe[T any] func(ctx context.Context) (T, bool)

// Until 立即执行一次 probe,之后按 interval 重复,直到成功或超过 timeout。
// 外部 ctx 被取消时返回 ctx 的错误,自身超时返回 ErrTimeout。
func Until[T any](ctx context.Context, timeout, interval time.Duration, probe Probe[T]) (T, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := retry.DoWithData(
		func() (T, error) {
			v, ok := probe(waitCtx)
			if !ok {
				var zero T
				return zero, errPending
			}
			return v, nil
		},
		retry.Context(waitCtx),
		retry.Attempts(0),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return v, nil
	}
	var zero T
	if ctx.Err() != nil {
		return zero, ctx.Err()
	}
	return zero, ErrTimeout
}

// Sleep 等待 d,ctx 取消时提前返回
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
