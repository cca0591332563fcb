// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Sowilo wiki tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/sowilo/internal/admin"
	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/wiki"
)

// contractURI is the resource URI of the page markup contract.
const contractURI = "sowilo://page-format"

// Author is recorded on revisions written through MCP when the caller gives
// no author name.
var Author = models.Author{Name: "McpClient", IP: "127.0.0.1"}

// Server wraps the MCP server with Sowilo tools.
type Server struct {
	mcp *server.MCPServer
	svc *admin.Service
	reg *wiki.Registry
}

// New creates a new MCP server with all Sowilo tools registered.
func New(svc *admin.Service) *Server {
	s := &Server{svc: svc, reg: svc.Registry()}

	s.mcp = server.NewMCPServer(
		"Sowilo",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_webs",
		mcp.WithDescription("List every web (independent wiki space) with its address and name."),
	), s.listWebs)

	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List the page names of a web."),
		mcp.WithString("web", mcp.Required(), mcp.Description("Web address")),
	), s.listPages)

	s.mcp.AddTool(mcp.NewTool("read_page",
		mcp.WithDescription("Read the current content of a wiki page."),
		mcp.WithString("web", mcp.Required(), mcp.Description("Web address")),
		mcp.WithString("page", mcp.Required(), mcp.Description("Page name (e.g. HomePage)")),
	), s.readPage)

	s.mcp.AddTool(mcp.NewTool("write_page",
		mcp.WithDescription("Write a new revision of a page, creating the page if it does not exist. "+
			"Content follows the page markup contract: read it first via the get_page_contract "+
			"tool or the "+contractURI+" resource."),
		mcp.WithString("web", mcp.Required(), mcp.Description("Web address")),
		mcp.WithString("page", mcp.Required(), mcp.Description("Page name")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Full page content")),
		mcp.WithString("author", mcp.Description("Author name recorded on the revision")),
		mcp.WithString("revised_at", mcp.Description("RFC 3339 timestamp of the revision; defaults to now")),
	), s.writePage)

	s.mcp.AddTool(mcp.NewTool("page_history",
		mcp.WithDescription("List the revisions of a page, oldest first."),
		mcp.WithString("web", mcp.Required(), mcp.Description("Web address")),
		mcp.WithString("page", mcp.Required(), mcp.Description("Page name")),
	), s.pageHistory)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all pages of the web that link to the specified page."),
		mcp.WithString("web", mcp.Required(), mcp.Description("Web address")),
		mcp.WithString("page", mcp.Required(), mcp.Description("Page name")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("list_orphans",
		mcp.WithDescription("List the pages the next orphan prune would remove. Nothing is deleted."),
		mcp.WithString("web", mcp.Required(), mcp.Description("Web address")),
	), s.listOrphans)

	s.mcp.AddTool(mcp.NewTool("search_pages",
		mcp.WithDescription("Search page names and current content of a web."),
		mcp.WithString("web", mcp.Required(), mcp.Description("Web address")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchPages)

	s.mcp.AddTool(mcp.NewTool("get_page_contract",
		mcp.WithDescription("Returns the page markup contract: links, categories and front matter. "+
			"Call this before writing pages."),
	), s.getPageContract)

	s.mcp.AddTool(mcp.NewTool("upload_file",
		mcp.WithDescription("Upload a file to a web from an http(s) URL or a base64 data URI. "+
			"The web must allow uploads. Returns a markdownImage field ready to paste into a page."),
		mcp.WithString("web", mcp.Required(), mcp.Description("Web address")),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:<mime>;base64,<data> URI")),
		mcp.WithString("filename", mcp.Description("Optional file name; derived from the URL when empty")),
	), s.uploadFile)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Page Markup Contract",
			mcp.WithResourceDescription("Wiki markup conventions that every page follows."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// toolError turns a domain failure into a tool error result. Unexpected
// failures are returned as protocol errors.
func toolError(err error) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrInvalid),
		errors.Is(err, apperr.ErrUnauthorized),
		errors.Is(err, apperr.ErrUploadsDisabled),
		errors.Is(err, apperr.ErrUploadTooLarge):
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, err
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}

// webPage reads the required web and page arguments.
func webPage(req mcp.CallToolRequest) (string, string, error) {
	web, err := req.RequireString("web")
	if err != nil {
		return "", "", err
	}
	page, err := req.RequireString("page")
	if err != nil {
		return "", "", err
	}
	return web, page, nil
}

func (s *Server) listWebs(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	webs, err := s.reg.Webs(ctx)
	if err != nil {
		return toolError(err)
	}
	lines := make([]string, 0, len(webs))
	for _, w := range webs {
		lines = append(lines, fmt.Sprintf("%s\t%s", w.Address, w.Name))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) listPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	web, err := req.RequireString("web")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pages, err := s.reg.Pages(ctx, web)
	if err != nil {
		return toolError(err)
	}
	names := make([]string, 0, len(pages))
	for _, p := range pages {
		names = append(names, p.Name)
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) readPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	web, page, err := webPage(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.reg.Page(ctx, web, page)
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(wiki.CurrentContent(p)), nil
}

func (s *Server) writePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	web, page, err := webPage(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	author := Author
	if name := req.GetString("author", ""); name != "" {
		author.Name = name
	}
	var at time.Time
	if raw := req.GetString("revised_at", ""); raw != "" {
		if at, err = time.Parse(time.RFC3339, raw); err != nil {
			return mcp.NewToolResultError("revised_at: " + err.Error()), nil
		}
	}

	p, err := s.svc.WritePage(ctx, web, page, content, at, author, nil)
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("written: %s/%s revision %d", web, p.Name, p.Revisions)), nil
}

func (s *Server) pageHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	web, page, err := webPage(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	revs, err := s.reg.History(ctx, web, page)
	if err != nil {
		return toolError(err)
	}
	type entry struct {
		Number    int    `json:"number"`
		Author    string `json:"author"`
		RevisedAt string `json:"revised_at"`
	}
	out := make([]entry, 0, len(revs))
	for _, r := range revs {
		out = append(out, entry{Number: r.Number, Author: r.Author.Name, RevisedAt: r.RevisedAt.UTC().Format("2006-01-02T15:04:05Z")})
	}
	return jsonResult(out)
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	web, page, err := webPage(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.reg.Backlinks(ctx, web, page)
	if err != nil {
		return toolError(err)
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) listOrphans(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	web, err := req.RequireString("web")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	names, err := s.reg.OrphanedPages(ctx, web)
	if err != nil {
		return toolError(err)
	}
	if len(names) == 0 {
		return mcp.NewToolResultText("no orphaned pages"), nil
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) searchPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	web, err := req.RequireString("web")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.reg.Search(ctx, web, query, 20)
	if err != nil {
		return toolError(err)
	}
	if results == nil {
		return mcp.NewToolResultText("[]"), nil
	}
	return jsonResult(results)
}

func (s *Server) getPageContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PageFormatContract), nil
}

func (s *Server) readContractResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     PageFormatContract,
		},
	}, nil
}
