package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/sowilo/internal/admin"
	"github.com/starford/sowilo/internal/testutil"
	"github.com/starford/sowilo/internal/wiki"
)

func testServer(t *testing.T) (*Server, *admin.Service) {
	t.Helper()
	reg := testutil.TestRegistry(t)
	testutil.SeedWiki(t, reg)
	_, files := testutil.TestFiles(t)
	svc := admin.NewService(reg, admin.WithUploads(files))
	return New(svc), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process "call tool" helper, so handlers are invoked
	// directly.
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_webs":         srv.listWebs,
		"list_pages":        srv.listPages,
		"read_page":         srv.readPage,
		"write_page":        srv.writePage,
		"page_history":      srv.pageHistory,
		"get_backlinks":     srv.getBacklinks,
		"list_orphans":      srv.listOrphans,
		"search_pages":      srv.searchPages,
		"get_page_contract": srv.getPageContract,
		"upload_file":       srv.uploadFile,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListWebs(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "list_webs", nil))
	if text != "instiki\tInstiki\nwiki1\tWiki One" {
		t.Errorf("list_webs = %q", text)
	}
}

func TestWriteAndReadPage(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "write_page", map[string]interface{}{
		"web": "wiki1", "page": "Birch", "content": "Birch, near [[Oak]].",
	})
	if r.IsError {
		t.Fatalf("write_page: %s", resultText(r))
	}
	if text := resultText(r); text != "written: wiki1/Birch revision 1" {
		t.Errorf("write result = %q", text)
	}

	r = callTool(t, srv, "read_page", map[string]interface{}{"web": "wiki1", "page": "Birch"})
	if text := resultText(r); text != "Birch, near [[Oak]]." {
		t.Errorf("read result = %q", text)
	}

	r = callTool(t, srv, "get_backlinks", map[string]interface{}{"web": "wiki1", "page": "Oak"})
	if text := resultText(r); text != "Birch" {
		t.Errorf("backlinks = %q, want Birch", text)
	}
}

func TestWritePage_RevisedAt(t *testing.T) {
	srv, svc := testServer(t)
	r := callTool(t, srv, "write_page", map[string]interface{}{
		"web": "wiki1", "page": "Birch", "content": "Birch.", "revised_at": "2004-04-04T16:00:00Z",
	})
	if r.IsError {
		t.Fatalf("write_page: %s", resultText(r))
	}
	p, err := svc.Registry().Page(context.Background(), "wiki1", "Birch")
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2004, 4, 4, 16, 0, 0, 0, time.UTC); !p.Current.RevisedAt.Equal(want) {
		t.Errorf("revised_at = %s, want %s", p.Current.RevisedAt, want)
	}

	r = callTool(t, srv, "write_page", map[string]interface{}{
		"web": "wiki1", "page": "Birch", "content": "x", "revised_at": "yesterday",
	})
	if !r.IsError {
		t.Error("malformed revised_at must be rejected")
	}
}

func TestWritePage_RecordsAuthor(t *testing.T) {
	srv, svc := testServer(t)
	callTool(t, srv, "write_page", map[string]interface{}{
		"web": "wiki1", "page": "Oak", "content": "Oak, again.", "author": "TreeHugger",
	})
	callTool(t, srv, "write_page", map[string]interface{}{
		"web": "wiki1", "page": "Oak", "content": "Oak, once more.",
	})

	revs, err := svc.Registry().History(context.Background(), "wiki1", "Oak")
	if err != nil {
		t.Fatal(err)
	}
	if len(revs) != 3 || revs[1].Author.Name != "TreeHugger" || revs[2].Author != Author {
		t.Errorf("revision authors = %+v", revs)
	}

	r := callTool(t, srv, "page_history", map[string]interface{}{"web": "wiki1", "page": "Oak"})
	var hist []struct {
		Number int    `json:"number"`
		Author string `json:"author"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &hist); err != nil {
		t.Fatalf("page_history output: %v", err)
	}
	if len(hist) != 3 || hist[2].Author != Author.Name {
		t.Errorf("history = %+v", hist)
	}
}

func TestReadPageMissing(t *testing.T) {
	srv, _ := testServer(t)
	for _, args := range []map[string]interface{}{
		{"web": "wiki1", "page": "Nope"},
		{"web": "nowhere", "page": "HomePage"},
		{"web": "wiki1"},
	} {
		if r := callTool(t, srv, "read_page", args); !r.IsError {
			t.Errorf("read_page %v: expected error", args)
		}
	}
}

func TestListOrphansDoesNotPrune(t *testing.T) {
	srv, svc := testServer(t)
	for i := 0; i < 2; i++ {
		r := callTool(t, srv, "list_orphans", map[string]interface{}{"web": "wiki1"})
		if text := resultText(r); text != "Oak" {
			t.Errorf("list_orphans = %q, want Oak", text)
		}
	}
	if _, err := svc.Registry().Page(context.Background(), "wiki1", "Oak"); err != nil {
		t.Errorf("Oak must survive: %v", err)
	}
}

func TestSearchPages(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "search_pages", map[string]interface{}{"web": "instiki", "query": "elephant"})
	if !strings.Contains(resultText(r), `"Elephant"`) {
		t.Errorf("search = %q", resultText(r))
	}
	r = callTool(t, srv, "search_pages", map[string]interface{}{"web": "instiki", "query": "zebra"})
	if text := resultText(r); text != "[]" {
		t.Errorf("empty search = %q", text)
	}
}

func TestPageContract(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "get_page_contract", nil))
	if !strings.Contains(text, "[[Page Name]]") || !strings.Contains(text, "category:") {
		t.Errorf("contract missing link or category rules")
	}
}

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestUploadFile_DataURI(t *testing.T) {
	srv, svc := testServer(t)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)
	args := map[string]interface{}{"web": "wiki1", "url": uri, "filename": "acorn.png"}

	if r := callTool(t, srv, "upload_file", args); !r.IsError {
		t.Fatal("upload must fail while the web disallows uploads")
	}

	allow := wiki.ParseWebEdit(url.Values{"allow_uploads": {"on"}})
	if _, err := svc.EditWeb(context.Background(), "wiki1", testutil.SystemPassword, allow); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "upload_file", args)
	if r.IsError {
		t.Fatalf("upload_file: %s", resultText(r))
	}
	var res uploadResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if res.Path != "wiki1/acorn.png" || res.MarkdownImage != "![acorn.png](/api/webs/wiki1/files/acorn.png)" {
		t.Errorf("result = %+v", res)
	}
	data, err := svc.Upload(context.Background(), "wiki1", "acorn.png")
	if err != nil || string(data) != string(pngHeader) {
		t.Errorf("stored upload = %q, %v", data, err)
	}
}

func TestUploadFile_RejectsMismatchedContent(t *testing.T) {
	srv, _ := testServer(t)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("plain text"))
	r := callTool(t, srv, "upload_file", map[string]interface{}{"web": "wiki1", "url": uri, "filename": "x.png"})
	if !r.IsError {
		t.Error("expected magic byte mismatch error")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd.png": "passwd.png",
		"my photo (1).jpg":     "my_photo__1_.jpg",
		"ok-name_2.pdf":        "ok-name_2.pdf",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCheckBlockedHost(t *testing.T) {
	for _, host := range []string{
		"127.0.0.1", "169.254.169.254", "metadata.google.internal",
		"10.0.0.1", "172.16.5.4", "192.168.1.1", "169.254.1.1",
		"::1", "fe80::1", "fd00::1", "0.0.0.0", "::ffff:127.0.0.1", "::ffff:10.1.2.3",
	} {
		if err := checkBlockedHost(host); err == nil {
			t.Errorf("%s should be blocked", host)
		}
	}
	if err := checkBlockedHost("93.184.216.34"); err != nil {
		t.Errorf("public address blocked: %v", err)
	}
}

func TestDecodeDataURI(t *testing.T) {
	p, err := decodeDataURI("data:image/gif;charset=binary;base64," + base64.StdEncoding.EncodeToString([]byte("GIF89a")))
	if err != nil || p.ext != ".gif" || string(p.data) != "GIF89a" {
		t.Fatalf("decodeDataURI = %+v, %v", p, err)
	}
	for _, bad := range []string{
		"data:image/png;base64",
		"data:image/png,plain",
		"data:text/html;base64,PGI+",
		"data:image/png;base64,!!!",
	} {
		if _, err := decodeDataURI(bad); err == nil {
			t.Errorf("decodeDataURI(%q) should fail", bad)
		}
	}
}

func TestFilenameFromURL(t *testing.T) {
	if got := filenameFromURL("https://example.com/img/oak.jpg?w=1", ".png"); got != "oak.jpg" {
		t.Errorf("got %q", got)
	}
	if got := filenameFromURL("https://example.com/img/", ".png"); !strings.HasSuffix(got, ".png") || len(got) != 40 {
		t.Errorf("got %q, want uuid.png", got)
	}
	if got := filenameFromURL("data:image/png;base64,AAAA", ""); !strings.HasSuffix(got, ".bin") {
		t.Errorf("got %q, want .bin fallback", got)
	}
}
