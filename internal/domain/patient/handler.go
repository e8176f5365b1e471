package patient

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/shreyaskommuri/ClinicAct/internal/platform/medplum"
)

// Handler provides HTTP handlers for patient lookup.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers patient routes on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.SearchPatients)
	api.GET("/patients/:id", h.GetPatient)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient id is required")
	}

	profile, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		var serr *medplum.StoreError
		if errors.As(err, &serr) && serr.StatusCode == http.StatusNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *Handler) SearchPatients(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	profiles, err := h.svc.Search(c.Request().Context(), c.QueryParam("name"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"patients": profiles,
		"count":    len(profiles),
	})
}
