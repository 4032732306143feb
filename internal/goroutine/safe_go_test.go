package goroutine

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestSafeGo_RecoversPanic(t *testing.T) {
	l, hook := test.NewNullLogger()
	rh := NewRecoveryHandler(l)

	rh.SafeGo("webhook", func() { panic("boom") })
	rh.Wait()

	entry := hook.LastEntry()
	if assert.NotNil(t, entry) {
		assert.Equal(t, logrus.ErrorLevel, entry.Level)
		assert.Equal(t, "webhook", entry.Data["task"])
		assert.Equal(t, "boom", entry.Data["panic"])
	}
}

func TestSafeGoWithContext_RunsTask(t *testing.T) {
	rh := NewRecoveryHandler(nil)
	var calls int32

	ctx := context.WithValue(context.Background(), struct{}{}, "v")
	rh.SafeGoWithContext(ctx, "count", func(c context.Context) {
		if c.Value(struct{}{}) == "v" {
			atomic.AddInt32(&calls, 1)
		}
	})
	rh.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
