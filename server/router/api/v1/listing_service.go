package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dwellify/dwellify/plugin/mls"
	svcerr "github.com/dwellify/dwellify/internal/errors"
)

// SearchListings proxies a listing search to the MLS provider.
func (s *APIV1Service) SearchListings(c echo.Context) error {
	if _, err := identity(c); err != nil {
		return err
	}
	result, err := s.Listings.Search(c.Request().Context(), mls.SearchParams{
		Query:    c.QueryParam("q"),
		City:     c.QueryParam("city"),
		MinPrice: c.QueryParam("minPrice"),
		MaxPrice: c.QueryParam("maxPrice"),
		MinBeds:  c.QueryParam("minBeds"),
		MaxBeds:  c.QueryParam("maxBeds"),
		Status:   c.QueryParam("status"),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// GetListing returns one listing summary.
func (s *APIV1Service) GetListing(c echo.Context) error {
	if _, err := identity(c); err != nil {
		return err
	}
	listing, err := s.Listings.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"listing": listing})
}

// GetListingDetail returns one listing with long-form fields, plus
// best-effort valuation enrichment when the provider is configured.
func (s *APIV1Service) GetListingDetail(c echo.Context) error {
	if _, err := identity(c); err != nil {
		return err
	}
	ctx := c.Request().Context()
	detail, err := s.Listings.GetDetailByID(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}

	response := map[string]any{"listing": detail}
	if s.Valuation != nil && s.Valuation.Enabled() && detail.Address != "" {
		city := ""
		if detail.City != nil {
			city = *detail.City
		}
		state := ""
		if detail.State != nil {
			state = *detail.State
		}
		// nil on any failure; the detail response does not depend on it.
		if data := s.Valuation.GetByAddress(ctx, detail.Address, city, state); data != nil {
			response["valuation"] = data
		}
	}
	return c.JSON(http.StatusOK, response)
}

// GetValuation looks up valuation data directly by address or provider id.
// The payload is null when nothing could be fetched; never an error.
func (s *APIV1Service) GetValuation(c echo.Context) error {
	if _, err := identity(c); err != nil {
		return err
	}
	ctx := c.Request().Context()

	if propertyID := c.QueryParam("propertyId"); propertyID != "" {
		return c.JSON(http.StatusOK, map[string]any{"valuation": s.Valuation.GetByPropertyID(ctx, propertyID)})
	}
	address := strings.TrimSpace(c.QueryParam("address"))
	if address == "" {
		return fail(c, svcerr.InvalidArgument("address or propertyId is required"))
	}
	data := s.Valuation.GetByAddress(ctx, address, c.QueryParam("city"), c.QueryParam("state"))
	return c.JSON(http.StatusOK, map[string]any{"valuation": data})
}
