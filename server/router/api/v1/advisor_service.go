package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dwellify/dwellify/server/advisor"
	svcerr "github.com/dwellify/dwellify/internal/errors"
	"github.com/dwellify/dwellify/server/score"
)

type adviseRequest struct {
	Message         string       `json:"message"`
	ListingID       string       `json:"listingId"`
	BuildingAddress string       `json:"buildingAddress"`
	Neighborhood    string       `json:"neighborhood"`
	Prefs           *score.Prefs `json:"prefs"`
}

// Advise answers an advisory question with note and listing context.
func (s *APIV1Service) Advise(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}

	req := &adviseRequest{}
	if err := c.Bind(req); err != nil {
		return fail(c, svcerr.InvalidArgument("malformed request body"))
	}

	response, err := s.advisor.Advise(c.Request().Context(), &advisor.Request{
		OrgID:           caller.OrgID,
		Message:         req.Message,
		ListingID:       req.ListingID,
		BuildingAddress: req.BuildingAddress,
		Neighborhood:    req.Neighborhood,
		Prefs:           req.Prefs,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, response)
}
