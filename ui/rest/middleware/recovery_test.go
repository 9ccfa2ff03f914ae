package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgError "github.com/AzielCF/az-sticker/pkg/error"
	"github.com/AzielCF/az-sticker/pkg/utils"
)

func TestRecovery(t *testing.T) {
	app := fiber.New()
	app.Use(Recovery())
	app.Get("/generic", func(c *fiber.Ctx) error {
		utils.PanicIfNeeded(pkgError.TimeoutError("search tool timed out"))
		return nil
	})
	app.Get("/wrapped", func(c *fiber.Ctx) error {
		utils.PanicIfNeeded(fmt.Errorf("%w: %q", pkgError.NotFoundError("no results found"), "cats"))
		return nil
	})
	app.Get("/plain", func(c *fiber.Ctx) error {
		utils.PanicIfNeeded(errors.New("disk on fire"))
		return nil
	})

	cases := []struct {
		path    string
		status  int
		code    string
		message string
	}{
		{"/generic", http.StatusGatewayTimeout, "GATEWAY_TIMEOUT", "search tool timed out"},
		{"/wrapped", http.StatusNotFound, "NOT_FOUND_ERROR", `no results found: "cats"`},
		{"/plain", http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "disk on fire"},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, tc.path, nil))
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, tc.path)

		var body utils.ResponseData
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()
		assert.Equal(t, tc.code, body.Code, tc.path)
		assert.Equal(t, tc.message, body.Message, tc.path)
	}
}
