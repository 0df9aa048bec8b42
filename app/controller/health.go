package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
