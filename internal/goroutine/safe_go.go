package goroutine

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/hsse-backend/internal/logger"
)

// Logger интерфейс для логирования паник.
type Logger interface {
	WithFields(fields logrus.Fields) *logrus.Entry
}

// RecoveryHandler перехватывает panic в фоновых горутинах.
type RecoveryHandler struct {
	logger Logger
	wg     sync.WaitGroup
}

// NewRecoveryHandler создаёт обработчик; nil означает глобальный logrus логгер.
func NewRecoveryHandler(l Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: l}
}

func (rh *RecoveryHandler) log() Logger {
	if rh.logger != nil {
		return rh.logger
	}
	return logger.L()
}

func (rh *RecoveryHandler) handlePanic(task string) {
	if r := recover(); r != nil {
		rh.log().WithFields(logrus.Fields{
			"task":  task,
			"panic": r,
			"stack": string(debug.Stack()),
		}).Error("panic в фоновой горутине")
	}
}

// SafeGo запускает горутину с обработкой panic.
func (rh *RecoveryHandler) SafeGo(task string, fn func()) {
	rh.wg.Add(1)
	go func() {
		defer rh.wg.Done()
		defer rh.handlePanic(task)
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic.
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, task string, fn func(context.Context)) {
	rh.wg.Add(1)
	go func() {
		defer rh.wg.Done()
		defer rh.handlePanic(task)
		fn(ctx)
	}()
}

// Wait ждёт завершения запущенных горутин (graceful shutdown и тесты).
func (rh *RecoveryHandler) Wait() {
	rh.wg.Wait()
}

// DefaultRecoveryHandler глобальный обработчик, пишет в logger.Log.
var DefaultRecoveryHandler = NewRecoveryHandler(nil)

// SafeGo запускает безопасную горутину через глобальный обработчик.
func SafeGo(task string, fn func()) {
	DefaultRecoveryHandler.SafeGo(task, fn)
}

// SafeGoWithContext запускает безопасную горутину с контекстом через глобальный обработчик.
func SafeGoWithContext(ctx context.Context, task string, fn func(context.Context)) {
	DefaultRecoveryHandler.SafeGoWithContext(ctx, task, fn)
}
