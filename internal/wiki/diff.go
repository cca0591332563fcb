package wiki

import (
	"context"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Change is one hunk of a revision diff.
type Change struct {
	Op   string `json:"op"` // "equal", "insert" or "delete"
	Text string `json:"text"`
}

// Diff compares revisions from and to of a page line by line.
func (r *Registry) Diff(ctx context.Context, address, name string, from, to int) ([]Change, error) {
	a, err := r.Revision(ctx, address, name, from)
	if err != nil {
		return nil, err
	}
	b, err := r.Revision(ctx, address, name, to)
	if err != nil {
		return nil, err
	}
	return DiffText(a.Content, b.Content), nil
}

// DiffText returns the line-level changes turning a into b.
func DiffText(a, b string) []Change {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)
	diffs = dmp.DiffCleanupSemantic(diffs)

	out := make([]Change, 0, len(diffs))
	for _, d := range diffs {
		op := "equal"
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = "insert"
		case diffmatchpatch.DiffDelete:
			op = "delete"
		}
		out = append(out, Change{Op: op, Text: d.Text})
	}
	return out
}
