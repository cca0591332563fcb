package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// maxFetchSize caps what upload_file downloads; the web's own
// max_upload_size is checked when the file is saved.
const maxFetchSize = 10 << 20

// fileType is one accepted upload format.
type fileType struct {
	ext  string
	mime string
	// sniff reports whether data looks like this type.
	sniff func(data []byte) bool
}

func sniffAs(mime string) func([]byte) bool {
	return func(data []byte) bool {
		detected, _, _ := strings.Cut(http.DetectContentType(data), ";")
		return detected == mime
	}
}

func sniffSVG(data []byte) bool {
	return bytes.Contains(data[:min(len(data), 1024)], []byte("<svg"))
}

var (
	fileTypes = []fileType{
		{".png", "image/png", sniffAs("image/png")},
		{".jpg", "image/jpeg", sniffAs("image/jpeg")},
		{".jpeg", "image/jpeg", sniffAs("image/jpeg")},
		{".gif", "image/gif", sniffAs("image/gif")},
		{".webp", "image/webp", sniffAs("image/webp")},
		{".svg", "image/svg+xml", sniffSVG},
		{".pdf", "application/pdf", sniffAs("application/pdf")},
	}

	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

	metadataAddr = netip.MustParseAddr("169.254.169.254")
)

func typeByExt(ext string) (fileType, bool) {
	ext = strings.ToLower(ext)
	for _, t := range fileTypes {
		if t.ext == ext {
			return t, true
		}
	}
	return fileType{}, false
}

// extForMIME returns the preferred extension for a media type, or "".
func extForMIME(mime string) string {
	mime, _, _ = strings.Cut(strings.TrimSpace(mime), ";")
	for _, t := range fileTypes {
		if t.mime == mime {
			return t.ext
		}
	}
	return ""
}

// payload is a file obtained from a data URI or a download. ext is derived
// from the declared media type and may be empty.
type payload struct {
	data []byte
	ext  string
}

type uploadResult struct {
	Web           string `json:"web"`
	Path          string `json:"path"`
	Size          int64  `json:"size"`
	MarkdownImage string `json:"markdownImage"`
}

func (s *Server) uploadFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	web, err := req.RequireString("web")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p, err := fetchPayload(ctx, source)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := req.GetString("filename", "")
	if name == "" {
		name = filenameFromURL(source, p.ext)
	}
	name = sanitizeFilename(name)

	ft, ok := typeByExt(filepath.Ext(name))
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported file extension %q for %s", filepath.Ext(name), name)), nil
	}
	if !ft.sniff(p.data) {
		return mcp.NewToolResultError(fmt.Sprintf("content of %s is not %s", name, ft.mime)), nil
	}

	f, err := s.svc.SaveUpload(ctx, web, name, p.data)
	if err != nil {
		return toolError(err)
	}
	link := "/api/webs/" + url.PathEscape(web) + "/files/" + url.PathEscape(name)
	return jsonResult(uploadResult{
		Web:           web,
		Path:          f.Path,
		Size:          f.Size,
		MarkdownImage: fmt.Sprintf("![%s](%s)", name, link),
	})
}

func fetchPayload(ctx context.Context, source string) (payload, error) {
	if strings.HasPrefix(source, "data:") {
		return decodeDataURI(source)
	}
	return fetchHTTP(ctx, source)
}

// decodeDataURI accepts data:<mime>[;params];base64,<data>.
func decodeDataURI(uri string) (payload, error) {
	meta, encoded, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return payload{}, errors.New("data URI has no ',' separator")
	}
	params := strings.Split(meta, ";")
	if params[len(params)-1] != "base64" {
		return payload{}, errors.New("data URI must be base64 encoded")
	}
	ext := extForMIME(params[0])
	if ext == "" {
		return payload{}, fmt.Errorf("unsupported media type %q in data URI", params[0])
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(encoded); err != nil {
			return payload{}, fmt.Errorf("data URI payload: %w", err)
		}
	}
	if len(data) > maxFetchSize {
		return payload{}, fmt.Errorf("file is %d bytes, limit is %d", len(data), maxFetchSize)
	}
	return payload{data: data, ext: ext}, nil
}

var fetchClient = &http.Client{
	Timeout: 30 * time.Second,
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return errors.New("stopped after 5 redirects")
		}
		return checkBlockedHost(req.URL.Hostname())
	},
}

// fetchHTTP downloads an http or https URL, refusing internal hosts.
func fetchHTTP(ctx context.Context, rawURL string) (payload, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return payload{}, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return payload{}, fmt.Errorf("unsupported scheme %q, use http or https", u.Scheme)
	}
	if err := checkBlockedHost(u.Hostname()); err != nil {
		return payload{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return payload{}, err
	}
	resp, err := fetchClient.Do(req)
	if err != nil {
		return payload{}, fmt.Errorf("download %s: %w", u.Redacted(), err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return payload{}, fmt.Errorf("download %s: HTTP %d", u.Redacted(), resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize+1))
	if err != nil {
		return payload{}, fmt.Errorf("download %s: %w", u.Redacted(), err)
	}
	if len(data) > maxFetchSize {
		return payload{}, fmt.Errorf("download %s: larger than %d bytes", u.Redacted(), maxFetchSize)
	}
	return payload{data: data, ext: extForMIME(resp.Header.Get("Content-Type"))}, nil
}

// checkBlockedHost refuses hosts that resolve to any internal address.
// Hosts that do not resolve are left to the HTTP client to fail on.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host %s", host)
	}
	var addrs []netip.Addr
	if addr, err := netip.ParseAddr(host); err == nil {
		addrs = append(addrs, addr)
	} else {
		ips, err := net.LookupIP(host)
		if err != nil {
			return nil
		}
		for _, ip := range ips {
			if addr, ok := netip.AddrFromSlice(ip); ok {
				addrs = append(addrs, addr)
			}
		}
	}
	for _, addr := range addrs {
		if isInternal(addr.Unmap()) {
			return fmt.Errorf("blocked host %s: internal address %s", host, addr)
		}
	}
	return nil
}

func isInternal(a netip.Addr) bool {
	return a.IsLoopback() || a.IsPrivate() || a.IsUnspecified() ||
		a.IsLinkLocalUnicast() || a.IsLinkLocalMulticast() || a == metadataAddr
}

// filenameFromURL uses the last path segment of an http URL when it has an
// extension, and a random name with ext otherwise.
func filenameFromURL(rawURL, ext string) string {
	if !strings.HasPrefix(rawURL, "data:") {
		if u, err := url.Parse(rawURL); err == nil {
			if base := path.Base(u.Path); strings.Contains(base, ".") && base != "." {
				return base
			}
		}
	}
	if ext == "" {
		ext = ".bin"
	}
	return uuid.NewString() + ext
}

// sanitizeFilename keeps the base name and replaces anything outside
// [a-zA-Z0-9._-] with '_'.
func sanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(filepath.Base(name), "_")
	if name == "" || name == "." || name == ".." {
		return uuid.NewString()
	}
	return name
}
