package session

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shreyaskommuri/ClinicAct/internal/platform/medplum"
)

// Handler provides HTTP handlers for the consult session lifecycle.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers session routes on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/sessions", h.StartSession)
	api.GET("/sessions/:id", h.GetSession)
	api.POST("/sessions/:id/analyze", h.Analyze)
	api.PATCH("/sessions/:id/actions/:actionId", h.UpdateAction)
	api.POST("/sessions/:id/actions/:actionId/approve", h.Approve)
	api.POST("/sessions/:id/actions/:actionId/reject", h.Reject)
	api.POST("/sessions/:id/actions/:actionId/reopen", h.Reopen)
	api.POST("/sessions/:id/apply", h.Apply)
	api.POST("/sessions/:id/aftercare", h.DraftAftercare)
	api.POST("/sessions/:id/aftercare/send", h.SendAftercare)
}

type startSessionRequest struct {
	PatientID         string `json:"patientId"`
	Insurance         string `json:"insurance"`
	PreferredPharmacy string `json:"preferredPharmacy"`
}

func (h *Handler) StartSession(c echo.Context) error {
	var req startSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patientId is required")
	}

	sess, err := h.svc.Start(c.Request().Context(), req.PatientID, req.Insurance, req.PreferredPharmacy)
	if err != nil {
		var serr *medplum.StoreError
		if errors.As(err, &serr) && serr.StatusCode == http.StatusNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *Handler) GetSession(c echo.Context) error {
	sess, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

type analyzeRequest struct {
	Transcript string `json:"transcript"`
}

func (h *Handler) Analyze(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Transcript == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "transcript is required")
	}

	sess, err := h.svc.Analyze(c.Request().Context(), c.Param("id"), req.Transcript)
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) UpdateAction(c echo.Context) error {
	var update ActionUpdate
	if err := c.Bind(&update); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sess, err := h.svc.UpdateAction(c.Request().Context(), c.Param("id"), c.Param("actionId"), update)
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Approve(c echo.Context) error {
	sess, err := h.svc.Approve(c.Request().Context(), c.Param("id"), c.Param("actionId"))
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Reject(c echo.Context) error {
	sess, err := h.svc.Reject(c.Request().Context(), c.Param("id"), c.Param("actionId"))
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Reopen(c echo.Context) error {
	sess, err := h.svc.Reopen(c.Request().Context(), c.Param("id"), c.Param("actionId"))
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Apply(c echo.Context) error {
	sess, results, err := h.svc.Apply(c.Request().Context(), c.Param("id"))
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"session": sess, "results": results})
}

func (h *Handler) DraftAftercare(c echo.Context) error {
	sess, err := h.svc.DraftAftercare(c.Request().Context(), c.Param("id"))
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

type sendAftercareRequest struct {
	Recipient string `json:"recipient"`
}

func (h *Handler) SendAftercare(c echo.Context) error {
	var req sendAftercareRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sess, err := h.svc.SendAftercare(c.Request().Context(), c.Param("id"), req.Recipient)
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

// sessionError maps service errors to HTTP status codes.
func sessionError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	case errors.Is(err, ErrActionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "action not found")
	case errors.Is(err, ErrBusy):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrIncomplete):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrReopenDisabled):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var serr *medplum.StoreError
	if errors.As(err, &serr) {
		return echo.NewHTTPError(http.StatusBadGateway, serr.Error())
	}
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}
