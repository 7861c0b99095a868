package format

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const maxCellWidth = 60

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	keyStyle    = lipgloss.NewStyle().Faint(true)
)

// WriteText renders v for humans. Values go through their JSON form first so json tags
// decide the field names. A list of objects becomes a table; an object becomes
// "key: value" lines with nested lists of objects rendered as tables below.
func WriteText(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var x any
	if err := json.Unmarshal(b, &x); err != nil {
		return err
	}

	var sb strings.Builder
	writeTextValue(&sb, x)
	_, err = io.WriteString(w, sb.String())
	return err
}

func writeTextValue(sb *strings.Builder, x any) {
	switch t := x.(type) {
	case map[string]any:
		writeObject(sb, t)
	case []any:
		if rows, ok := objectRows(t); ok {
			writeTable(sb, rows)
			return
		}
		for _, v := range t {
			sb.WriteString(scalar(v))
			sb.WriteByte('\n')
		}
	default:
		sb.WriteString(scalar(t))
		sb.WriteByte('\n')
	}
}

func writeObject(sb *strings.Builder, m map[string]any) {
	keys := sortedKeys(m)
	var nested []string
	width := 0
	for _, k := range keys {
		if isTable(m[k]) {
			nested = append(nested, k)
			continue
		}
		if n := ansi.StringWidth(k); n > width {
			width = n
		}
	}
	for _, k := range keys {
		if isTable(m[k]) {
			continue
		}
		label := keyStyle.Render(k + ":")
		pad := strings.Repeat(" ", width-ansi.StringWidth(k)+1)
		sb.WriteString(label + pad + scalar(m[k]) + "\n")
	}
	for _, k := range nested {
		sb.WriteString("\n" + headerStyle.Render(k) + "\n")
		rows, _ := objectRows(m[k].([]any))
		writeTable(sb, rows)
	}
}

func isTable(v any) bool {
	arr, ok := v.([]any)
	if !ok {
		return false
	}
	_, ok = objectRows(arr)
	return ok
}

func objectRows(arr []any) ([]map[string]any, bool) {
	if len(arr) == 0 {
		return nil, false
	}
	rows := make([]map[string]any, 0, len(arr))
	for _, v := range arr {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		rows = append(rows, m)
	}
	return rows, true
}

func writeTable(sb *strings.Builder, rows []map[string]any) {
	colSet := map[string]struct{}{}
	for _, r := range rows {
		for k := range r {
			colSet[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(colSet))
	for k := range colSet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	cells := make([][]string, len(rows))
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = ansi.StringWidth(c)
	}
	for r, row := range rows {
		cells[r] = make([]string, len(cols))
		for i, c := range cols {
			s := ansi.Truncate(scalar(row[c]), maxCellWidth, "…")
			cells[r][i] = s
			if n := ansi.StringWidth(s); n > widths[i] {
				widths[i] = n
			}
		}
	}

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = headerStyle.Width(widths[i]).Render(c)
	}
	sb.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, joinCells(header)...), " ") + "\n")
	for _, row := range cells {
		line := make([]string, len(cols))
		for i, s := range row {
			line[i] = lipgloss.NewStyle().Width(widths[i]).Render(s)
		}
		sb.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, joinCells(line)...), " ") + "\n")
	}
}

func joinCells(cells []string) []string {
	out := make([]string, 0, len(cells)*2)
	for i, c := range cells {
		if i > 0 {
			out = append(out, "  ")
		}
		out = append(out, c)
	}
	return out
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case string:
		return strings.ReplaceAll(t, "\n", " ")
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = scalar(e)
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := sortedKeys(t)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + scalar(t[k])
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(t)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
