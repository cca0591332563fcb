// Package renderer extracts outgoing page links and category tags from wiki content.
//
// Turning markup into HTML is not done here; the wiki only needs the derived
// link and category sets, and this package supplies them for every markup.
package renderer

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	bracketLinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	wikiWordRe    = regexp.MustCompile(`\b(?:[A-Z]+[a-z0-9]+){2,}\b`)
	urlRe         = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9+.-]*://\S+`)
	categoryRe    = regexp.MustCompile(`(?im)^[ \t]*category[ \t]*:(.*)$`)
)

// Renderer is the capability the wiki core needs from a markup engine.
type Renderer interface {
	// Links returns the distinct page names referenced by content.
	Links(content string) []string
	// Categories returns the distinct category tags declared by content.
	Categories(content string) []string
}

// Wiki is the built-in Renderer. It understands [[Page Name]] and
// [[Page Name|alias]] references, CamelCase WikiWords (unless BracketsOnly),
// "category: a, b" lines and a YAML front matter "categories" list.
type Wiki struct {
	BracketsOnly bool
}

var _ Renderer = Wiki{}

// Links implements Renderer.
func (r Wiki) Links(content string) []string {
	_, body := splitFrontmatter(content)
	body = categoryRe.ReplaceAllString(body, "")

	seen := make(map[string]struct{})
	var out []string
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	for _, m := range bracketLinkRe.FindAllStringSubmatch(body, -1) {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		add(target)
	}
	if r.BracketsOnly {
		return out
	}

	plain := bracketLinkRe.ReplaceAllString(body, " ")
	plain = urlRe.ReplaceAllString(plain, " ")
	for _, loc := range wikiWordRe.FindAllStringIndex(plain, -1) {
		// \WikiWord escapes the reference.
		if loc[0] > 0 && plain[loc[0]-1] == '\\' {
			continue
		}
		add(plain[loc[0]:loc[1]])
	}
	return out
}

// Categories implements Renderer.
func (r Wiki) Categories(content string) []string {
	fm, body := splitFrontmatter(content)

	seen := make(map[string]struct{})
	var out []string
	add := func(c string) {
		c = strings.TrimSpace(c)
		if c == "" {
			return
		}
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	if raw, ok := fm["categories"]; ok {
		switch v := raw.(type) {
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		case string:
			for _, s := range strings.Split(v, ",") {
				add(s)
			}
		}
	}

	for _, m := range categoryRe.FindAllStringSubmatch(body, -1) {
		for _, c := range strings.Split(m[1], ",") {
			add(c)
		}
	}
	return out
}

// For returns the renderer matching a web's link policy.
func For(bracketsOnly bool) Renderer {
	return Wiki{BracketsOnly: bracketsOnly}
}

// splitFrontmatter separates YAML front matter (between leading --- lines)
// from the body. Missing or invalid front matter leaves content untouched.
func splitFrontmatter(content string) (map[string]interface{}, string) {
	const delim = "---"
	data := []byte(content)
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, content
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, content
	}

	var fm map[string]interface{}
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, content
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return fm, body
}
