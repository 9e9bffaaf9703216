package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShutdownWaitsForAllDrainers(t *testing.T) {
	var a, b bool
	err := Shutdown(context.Background(),
		DrainerFunc(func(ctx context.Context) error { a = true; return nil }),
		DrainerFunc(func(ctx context.Context) error { b = true; return nil }),
	)
	assert.NoError(t, err)
	assert.True(t, a)
	assert.True(t, b)
}

func TestShutdownPropagatesFirstError(t *testing.T) {
	boom := errors.New("udp director: read loop wedged")
	err := Shutdown(context.Background(),
		DrainerFunc(func(ctx context.Context) error { return boom }),
		DrainerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	)
	assert.ErrorIs(t, err, boom)
}

func TestShutdownRespectsDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := Shutdown(ctx, DrainerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
