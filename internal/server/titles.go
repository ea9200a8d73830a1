package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/animegate/internal/catalog/domain"
	"github.com/smallbiznis/animegate/pkg/db/pagination"
)

const (
	defaultTitleLimit = 10
	maxTitleLimit     = 50
)

type listTitlesQuery struct {
	Sort  string `form:"sort"`
	Limit string `form:"limit"`
	Q     string `form:"q"`
	Mode  string `form:"mode"`
}

type titleResponse struct {
	ID            int64  `json:"id"`
	Code          int64  `json:"code"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Genre         string `json:"genre"`
	Country       string `json:"country"`
	Language      string `json:"language"`
	Year          int    `json:"year"`
	Dub           string `json:"dub"`
	EpisodesLabel string `json:"episodes_label"`
	Views         int64  `json:"views"`
	CreatedAt     string `json:"created_at"`
}

// ListTitles serves the top, recent or search listings of the catalogue.
// sort=name pages through every title alphabetically.
func (s *Server) ListTitles(c *gin.Context) {
	var query listTitlesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	limit, err := parseLimit(query.Limit)
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	ctx := c.Request.Context()
	var titles []catalogdomain.Title
	switch {
	case strings.TrimSpace(query.Q) != "":
		mode := catalogdomain.SearchByName
		switch strings.ToLower(strings.TrimSpace(query.Mode)) {
		case "", string(catalogdomain.SearchByName):
		case string(catalogdomain.SearchByGenre):
			mode = catalogdomain.SearchByGenre
		default:
			AbortWithError(c, newValidationError("mode", "invalid_mode", "invalid search mode"))
			return
		}
		titles, err = s.catalogSvc.Search(ctx, catalogdomain.SearchRequest{Mode: mode, Query: query.Q, Limit: limit})
	default:
		switch strings.ToLower(strings.TrimSpace(query.Sort)) {
		case "", "top":
			titles, err = s.catalogSvc.Top(ctx, limit)
		case "recent":
			titles, err = s.catalogSvc.Recent(ctx, limit)
		case "name":
			s.listTitlePage(c)
			return
		default:
			AbortWithError(c, newValidationError("sort", "invalid_sort", "sort must be top, recent or name"))
			return
		}
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]titleResponse, 0, len(titles))
	for _, title := range titles {
		resp = append(resp, toTitleResponse(title))
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) listTitlePage(c *gin.Context) {
	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if p.Page < 1 || p.PageSize < 1 || p.PageSize > pagination.MaxPageSize {
		AbortWithError(c, newValidationError("page_size", "invalid_page", "invalid page or page_size"))
		return
	}

	page, err := s.catalogSvc.ListPage(c.Request.Context(), p.Page, p.PageSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]titleResponse, 0, len(page.Titles))
	for _, title := range page.Titles {
		resp = append(resp, toTitleResponse(title))
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      resp,
		"page_info": pagination.BuildPageInfo(p, int(page.Total)),
	})
}

// GetTitle looks a title up by slug without counting a view.
func (s *Server) GetTitle(c *gin.Context) {
	title, err := s.catalogSvc.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toTitleResponse(title)})
}

func (s *Server) CatalogStats(c *gin.Context) {
	stats, err := s.catalogSvc.Stats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func parseLimit(value string) (int, error) {
	parsed, err := parseOptionalInt64(value)
	if err != nil {
		return 0, err
	}
	if parsed == nil {
		return defaultTitleLimit, nil
	}
	if *parsed <= 0 || *parsed > maxTitleLimit {
		return 0, ErrInvalidRequest
	}
	return int(*parsed), nil
}

func toTitleResponse(t catalogdomain.Title) titleResponse {
	return titleResponse{
		ID:            t.ID,
		Code:          t.ID,
		Name:          t.Name,
		Slug:          t.Slug,
		Genre:         t.Genre,
		Country:       t.Country,
		Language:      t.Language,
		Year:          t.Year,
		Dub:           t.Dub,
		EpisodesLabel: t.EpisodesLabel,
		Views:         t.Views,
		CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339),
	}
}
