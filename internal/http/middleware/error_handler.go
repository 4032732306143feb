package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/hsse-backend/internal/http/response"
	"github.com/ignatzorin/hsse-backend/internal/logger"
)

// ErrorHandler отвечает за ошибки, добавленные через c.Error, если хэндлер
// ничего не записал. Паники перехватываются и превращаются в 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.FromContext(c.Request.Context()).WithFields(logrus.Fields{
					"panic": r,
				}).Error("panic в обработчике запроса")
				if !c.Writer.Written() {
					c.Abort()
					response.Error(c, errPanic)
				}
			}
		}()

		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}
		response.Error(c, c.Errors.Last().Err)
	}
}

type panicError struct{}

func (panicError) Error() string { return "panic" }

var errPanic = panicError{}
