package hierarchy

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/dbsmedya/gosti/sti"
)

// RenderOptions controls Render output.
type RenderOptions struct {
	Color bool // highlight type names and scope state
}

type renderRow struct {
	label   string
	name    string
	table   string
	scoped  bool
	details string
}

// Render writes the tree, one type per line, with its resolved table, scope
// state, merged casts and behaviors. Columns are aligned by display width.
func (t *Tree) Render(w io.Writer, r *sti.Resolver, opts RenderOptions) error {
	if t.Root == "" {
		return fmt.Errorf("tree has no root")
	}

	var rows []renderRow
	t.collectRows(r, t.Root, "", "", &rows)

	labelWidth, tableWidth := 0, 0
	for _, row := range rows {
		if w := runewidth.StringWidth(row.label); w > labelWidth {
			labelWidth = w
		}
		if w := runewidth.StringWidth(row.table); w > tableWidth {
			tableWidth = w
		}
	}

	for _, row := range rows {
		label := runewidth.FillRight(row.label, labelWidth)
		scope := "unscoped"
		if row.scoped {
			scope = "scoped"
		}
		scope = runewidth.FillRight(scope, len("unscoped"))

		if opts.Color {
			label = strings.Replace(label, row.name, color.Cyan.Sprint(row.name), 1)
			if row.scoped {
				scope = color.Green.Sprint(scope)
			} else {
				scope = color.Gray.Sprint(scope)
			}
		}

		line := label + "  " + runewidth.FillRight(row.table, tableWidth) + "  " + scope
		if row.details != "" {
			line += "  " + row.details
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) collectRows(r *sti.Resolver, name, prefix, branch string, rows *[]renderRow) {
	row := renderRow{
		label:  prefix + branch + name,
		name:   name,
		scoped: r.Scoped(name),
	}
	if rec, err := r.Registry().New(name); err == nil {
		row.table = r.Table(rec)
		row.details = describe(t.Nodes[name], rec.Casts())
	}
	*rows = append(*rows, row)

	childPrefix := prefix
	switch branch {
	case "├── ":
		childPrefix += "│   "
	case "└── ":
		childPrefix += "    "
	}

	children := t.GetChildren(name)
	for i, child := range children {
		b := "├── "
		if i == len(children)-1 {
			b = "└── "
		}
		t.collectRows(r, child, childPrefix, b, rows)
	}
}

func describe(n *Node, casts map[string]string) string {
	var parts []string
	if len(casts) > 0 {
		keys := make([]string, 0, len(casts))
		for k := range casts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + ":" + casts[k]
		}
		parts = append(parts, "casts="+strings.Join(pairs, ","))
	}
	if n != nil && len(n.Methods) > 0 {
		parts = append(parts, "methods="+strings.Join(n.Methods, ","))
	}
	if n != nil && len(n.Overrides) > 0 {
		parts = append(parts, "overrides="+strings.Join(n.Overrides, ","))
	}
	return strings.Join(parts, "  ")
}
