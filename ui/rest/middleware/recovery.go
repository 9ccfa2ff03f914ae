package middleware

import (
	"errors"
	"fmt"

	pkgError "github.com/AzielCF/az-sticker/pkg/error"
	"github.com/AzielCF/az-sticker/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func Recovery() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}

			var res utils.ResponseData
			res.Status = 500
			res.Code = "INTERNAL_SERVER_ERROR"
			res.Message = fmt.Sprintf("%v", recovered)

			var generic pkgError.GenericError
			if err, ok := recovered.(error); ok && errors.As(err, &generic) {
				res.Status = generic.StatusCode()
				res.Code = generic.ErrCode()
				// Wrapped errors carry the query or size detail, keep it.
				res.Message = err.Error()
			}

			if res.Status >= 500 {
				logrus.Errorf("[REST] %s %s failed: %v", ctx.Method(), ctx.Path(), recovered)
			} else {
				logrus.Debugf("[REST] %s %s rejected: %v", ctx.Method(), ctx.Path(), recovered)
			}

			_ = ctx.Status(res.Status).JSON(res)
		}()

		return ctx.Next()
	}
}
