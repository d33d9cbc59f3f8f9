package handlers

import (
	"net/http"

	"unvocal/internal/version"

	"github.com/labstack/echo/v4"
)

// Health は稼働状態とバージョンを返す
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}
