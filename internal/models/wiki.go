// Package models defines the domain types for the wiki.
package models

import "time"

// HomePage is the name of the entry page every web is created with.
const HomePage = "HomePage"

// Markup selects the external rendering engine for a web.
type Markup string

// Supported markup engines.
const (
	MarkupTextile     Markup = "textile"
	MarkupMarkdown    Markup = "markdown"
	MarkupMarkdownMML Markup = "markdownMML"
	MarkupMixed       Markup = "mixed"
	MarkupRDoc        Markup = "rdoc"
)

// Markups lists every accepted markup value.
var Markups = []Markup{MarkupTextile, MarkupMarkdown, MarkupMarkdownMML, MarkupMixed, MarkupRDoc}

// Web defaults applied on creation.
const (
	DefaultMarkup        = MarkupTextile
	DefaultColor         = "008B26"
	DefaultMaxUploadSize = int64(100 << 10)
)

// System is the installation-wide singleton. A nil Password means the
// installation default secret is in effect.
type System struct {
	Password *string `json:"-"`
}

// Web is an independently addressable content space.
type Web struct {
	ID              int64     `json:"id"`
	Address         string    `json:"address"`
	Name            string    `json:"name"`
	Markup          Markup    `json:"markup"`
	Color           string    `json:"color"`
	AdditionalStyle string    `json:"additional_style"`
	Password        *string   `json:"-"`
	SafeMode        bool      `json:"safe_mode"`
	Published       bool      `json:"published"`
	BracketsOnly    bool      `json:"brackets_only"`
	CountPages      bool      `json:"count_pages"`
	AllowUploads    bool      `json:"allow_uploads"`
	MaxUploadSize   int64     `json:"max_upload_size"`
	CreatedAt       time.Time `json:"created_at"`
}

// HasPassword reports whether the web carries its own password.
func (w *Web) HasPassword() bool {
	return w.Password != nil && *w.Password != ""
}

// Author identifies who wrote a revision and from where.
type Author struct {
	Name string `json:"name"`
	IP   string `json:"ip"`
}

// Revision is one immutable content snapshot of a page.
type Revision struct {
	ID        int64     `json:"id"`
	PageID    int64     `json:"page_id"`
	Number    int       `json:"number"`
	Content   string    `json:"content"`
	Checksum  string    `json:"checksum"`
	Author    Author    `json:"author"`
	RevisedAt time.Time `json:"revised_at"`
}

// Page is a named content unit inside a web. Links and Categories are derived
// from the current revision at write time.
type Page struct {
	ID         int64     `json:"id"`
	WebID      int64     `json:"web_id"`
	Name       string    `json:"name"`
	Current    Revision  `json:"current"`
	Revisions  int       `json:"revisions"`
	Links      []string  `json:"links"`
	Categories []string  `json:"categories"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Content returns the latest revision's snapshot.
func (p *Page) Content() string {
	return p.Current.Content
}

// IsHome reports whether p is its web's home page.
func (p *Page) IsHome() bool {
	return p.Name == HomePage
}
