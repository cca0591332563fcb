package api

import (
	"time"

	"github.com/starford/sowilo/internal/linkgraph"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/store"
	"github.com/starford/sowilo/internal/wiki"
)

// WriteRequest is the request body for writing a page revision.
type WriteRequest struct {
	Content string `json:"content" example:"Refers to [[Oak]]." validate:"required"`
	Author  string `json:"author" example:"TreeHugger"`
	// RevisedAt dates the revision; omitted means the time of the request.
	RevisedAt time.Time `json:"revised_at,omitempty" example:"2004-04-04T15:50:00Z"`
}

// RollbackRequest is the request body for restoring an old revision.
type RollbackRequest struct {
	Revision int    `json:"revision" example:"1" validate:"required"`
	Author   string `json:"author" example:"TreeHugger"`
}

// WebResponse describes a web. PageCount is set only when the web has
// count_pages enabled.
type WebResponse struct {
	models.Web
	HasPassword bool `json:"has_password"`
	PageCount   *int `json:"page_count,omitempty"`
}

// PageListItem is a lightweight item in a page listing.
type PageListItem struct {
	Name       string        `json:"name" example:"HomePage"`
	Revisions  int           `json:"revisions" example:"3"`
	Author     models.Author `json:"author"`
	Categories []string      `json:"categories"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// PageDetail is the full page response.
type PageDetail struct {
	models.Page
	Content   string   `json:"content"`
	Backlinks []string `json:"backlinks"`
}

// RemovedResponse lists the pages a prune removed.
type RemovedResponse struct {
	Removed []string `json:"removed" validate:"required"`
}

// OrphansResponse lists the pages the next prune would remove.
type OrphansResponse struct {
	Orphans []string `json:"orphans" validate:"required"`
}

// WantedResponse lists linked-to pages that do not exist.
type WantedResponse struct {
	Wanted []linkgraph.Wanted `json:"wanted" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []store.SearchResult `json:"results" validate:"required"`
}

// DiffResponse lists the changes between two revisions.
type DiffResponse struct {
	From    int           `json:"from"`
	To      int           `json:"to"`
	Changes []wiki.Change `json:"changes"`
}

func pageListItem(p models.Page) PageListItem {
	return PageListItem{
		Name:       p.Name,
		Revisions:  p.Revisions,
		Author:     p.Current.Author,
		Categories: p.Categories,
		UpdatedAt:  p.UpdatedAt,
	}
}
