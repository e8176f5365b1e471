package questionnaire

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shreyaskommuri/ClinicAct/internal/platform/medplum"
)

// Handler provides HTTP handlers for form definitions and autofill.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers questionnaire routes on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/questionnaires", h.ListQuestionnaires)
	api.GET("/questionnaires/:id", h.GetQuestionnaire)
	api.POST("/questionnaires/:id/autofill", h.Autofill)
}

func (h *Handler) ListQuestionnaires(c echo.Context) error {
	summaries, err := h.svc.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"questionnaires": summaries})
}

func (h *Handler) GetQuestionnaire(c echo.Context) error {
	q, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		var serr *medplum.StoreError
		if errors.As(err, &serr) && serr.StatusCode == http.StatusNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "questionnaire not found")
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, q)
}

type autofillRequest struct {
	Resource       json.RawMessage   `json:"resource"`
	PatientContext map[string]string `json:"patientContext"`
}

func (h *Handler) Autofill(c echo.Context) error {
	var req autofillRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	values, err := h.svc.Autofill(c.Request().Context(), c.Param("id"), req.Resource, req.PatientContext)
	if err != nil {
		var serr *medplum.StoreError
		if errors.As(err, &serr) && serr.StatusCode == http.StatusNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "questionnaire not found")
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"values": values})
}
