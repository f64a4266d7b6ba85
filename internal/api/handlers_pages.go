// handlers_pages.go - Navigation and page content handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/thermal-analyzer/backend/internal/pages"
)

// PagesHandlerImpl implements the PagesHandler interface
type PagesHandlerImpl struct{}

// NewPagesHandler creates a new pages handler
func NewPagesHandler() PagesHandler {
	return &PagesHandlerImpl{}
}

// HandleNavigation returns the navigation items, marking ?path= active
func (h *PagesHandlerImpl) HandleNavigation(c echo.Context) error {
	return c.JSON(http.StatusOK, pages.Navigation(c.QueryParam("path")))
}

// HandleGetPage returns the page for ?path=, or the not-found page with 404
func (h *PagesHandlerImpl) HandleGetPage(c echo.Context) error {
	page, ok := pages.Lookup(c.QueryParam("path"))
	if !ok {
		return c.JSON(http.StatusNotFound, page)
	}
	return c.JSON(http.StatusOK, page)
}
