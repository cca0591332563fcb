package mcpserver

// PageFormatContract describes the wiki markup that LLM consumers should
// follow when writing pages.
const PageFormatContract = `# Sowilo Page Markup Contract

A Sowilo installation holds several webs. Each web is an independent set of
pages addressed by name; every write adds a revision and never loses history.

## Links

- ` + "`" + `[[Page Name]]` + "`" + ` links to a page of the same web. The page does not
  have to exist yet; missing pages show up in the web's wanted list.
- ` + "`" + `[[Page Name|shown text]]` + "`" + ` links with different display text.
- CamelCase words such as ` + "`" + `HomePage` + "`" + ` are links too, unless the web
  is set to brackets only. Escape one with a backslash: ` + "`" + `\NotALink` + "`" + `.
- URLs are never treated as page links.

## Categories

Declare categories on a line of their own:

` + "```" + `
category: trees, plants
` + "```" + `

or in YAML front matter at the very top of the page:

` + "```" + `markdown
---
categories:
  - trees
  - plants
---
` + "```" + `

## Orphans

A page that no other page links to can be removed by an administrator's
orphan prune. ` + "`" + `HomePage` + "`" + ` and pages named after an author of the web
are never removed. Link new pages from an existing one to keep them.

## Files

Upload files with the ` + "`" + `upload_file` + "`" + ` tool (the web must allow uploads).
It returns a ` + "`" + `markdownImage` + "`" + ` field ready to paste into the page.
Supported formats: png, jpg, jpeg, gif, webp, svg, pdf.

## Example

` + "```" + `markdown
The [[Oak]] is a tree. See also BirchTree and [[Pine|pines]].

![acorn](/api/webs/wiki1/files/acorn.png)

category: trees
` + "```" + `
`
