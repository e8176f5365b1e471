package practitioner

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/shreyaskommuri/ClinicAct/internal/platform/npi"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers practitioner routes on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/practitioners", h.SearchPractitioners)
}

func (h *Handler) SearchPractitioners(c echo.Context) error {
	params := npi.SearchParams{
		City:       c.QueryParam("city"),
		State:      c.QueryParam("state"),
		PostalCode: c.QueryParam("postalCode"),
		Specialty:  c.QueryParam("specialty"),
	}
	if limit := c.QueryParam("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a number")
		}
		params.Limit = n
	}

	practitioners, err := h.svc.Search(c.Request().Context(), params)
	if err != nil {
		if errors.Is(err, ErrNoFilter) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"practitioners": practitioners})
}
