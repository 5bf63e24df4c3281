// Package report presents a migration report: a terminal summary and a
// YAML or JSON file.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"

	"github.com/dbsmedya/gomigrate/internal/migrator"
	"github.com/dbsmedya/gomigrate/internal/types"
)

// Renderer writes a human-readable report.
type Renderer struct {
	Color bool // Colorize states and outcomes
}

func (r Renderer) paint(c color.Color, s string) string {
	if !r.Color {
		return s
	}
	return c.Sprint(s)
}

// pad right-fills s to width terminal cells.
func pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// Render writes the summary of rep to w.
func (r Renderer) Render(w io.Writer, rep *migrator.Report) error {
	title := "Migration Complete"
	if rep.DryRun {
		title = "Dry Run"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n=== %s ===\n", title)

	summary := [][2]string{
		{"Run ID", rep.RunID},
		{"Job", rep.Job},
		{"Source", rep.Source},
		{"Target table", rep.TargetTable},
		{"State", r.state(rep)},
		{"Duration", rep.Duration.String()},
		{"Columns", strings.Join(rep.Columns, ", ")},
	}
	if len(rep.Dropped) > 0 {
		summary = append(summary, [2]string{"Dropped", strings.Join(rep.Dropped, ", ")})
	}
	writePairs(&sb, summary)

	sb.WriteString("\nRows:\n")
	writePairs(&sb, [][2]string{
		{"  read", fmt.Sprint(rep.Read)},
		{"  mapped", fmt.Sprint(rep.Mapped)},
		{"  duplicates", fmt.Sprint(rep.Duplicates)},
		{"  conflicts", fmt.Sprint(rep.Conflicts)},
		{"  inserted", r.count(rep.Inserted, color.Green)},
		{"  updated", r.count(rep.Updated, color.Green)},
		{"  skipped", r.count(rep.Skipped, color.Yellow)},
		{"  failed", r.count(rep.Failed, color.Red)},
		{"  not attempted", r.count(rep.NotAttempted, color.Yellow)},
	})

	if p := rep.Plan; p != nil && rep.DryRun {
		sb.WriteString("\nPlan:\n")
		writePairs(&sb, [][2]string{
			{"  create target", fmt.Sprint(p.CreateTarget)},
			{"  insert", fmt.Sprint(p.Insert)},
			{"  update", fmt.Sprint(p.Update)},
			{"  skip", fmt.Sprint(p.Skip)},
			{"  chunks", fmt.Sprintf("%d (batch_size=%d, workers=%d)", p.Chunks, p.BatchSize, p.Workers)},
		})
	}

	if len(rep.Chunks) > 0 {
		sb.WriteString("\nChunks:\n")
		r.writeChunks(&sb, rep.Chunks)
	}

	if v := rep.Verification; v != nil {
		outcome := r.paint(color.Green, "passed")
		if !v.Match {
			outcome = r.paint(color.Red, "MISMATCH")
		}
		fmt.Fprintf(&sb, "\nVerification (%s): %s", v.Method, outcome)
		if v.Message != "" {
			fmt.Fprintf(&sb, " - %s", v.Message)
		}
		sb.WriteString("\n")
	}

	if len(rep.Errors) > 0 {
		sb.WriteString("\nErrors:\n")
		for _, e := range rep.Errors {
			fmt.Fprintf(&sb, "  - %s\n", describeError(e))
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func (r Renderer) state(rep *migrator.Report) string {
	s := string(rep.State)
	if rep.Cancelled {
		s += " (cancelled)"
	}
	switch {
	case rep.State == migrator.StateFailed:
		return r.paint(color.Red, s)
	case rep.Succeeded():
		return r.paint(color.Green, s)
	default:
		return r.paint(color.Yellow, s)
	}
}

func (r Renderer) count(n int64, c color.Color) string {
	if n == 0 {
		return "0"
	}
	return r.paint(c, fmt.Sprint(n))
}

func writePairs(sb *strings.Builder, pairs [][2]string) {
	width := 0
	for _, p := range pairs {
		width = max(width, runewidth.StringWidth(p[0]))
	}
	for _, p := range pairs {
		if p[1] == "" {
			continue
		}
		fmt.Fprintf(sb, "%s  %s\n", pad(p[0]+":", width+1), p[1])
	}
}

func (r Renderer) writeChunks(sb *strings.Builder, chunks []migrator.ChunkResult) {
	header := []string{"#", "kind", "rows", "status", "duration"}
	rows := make([][]string, 0, len(chunks))
	for _, c := range chunks {
		status := "committed"
		switch {
		case !c.Attempted:
			status = "not attempted"
		case !c.Committed:
			status = "rolled back"
		}
		rows = append(rows, []string{
			fmt.Sprint(c.Index),
			string(c.Kind),
			fmt.Sprint(c.Rows),
			status,
			c.Duration.String(),
		})
	}

	writeTable(sb, header, rows, func(i int, s string) string {
		if i != 3 {
			return s
		}
		switch strings.TrimSpace(s) {
		case "committed":
			return r.paint(color.Green, s)
		case "rolled back":
			return r.paint(color.Red, s)
		}
		return r.paint(color.Yellow, s)
	})
}

// writeTable writes header and rows as indented columns aligned by terminal
// cell width. paint decorates body cells by column index.
func writeTable(sb *strings.Builder, header []string, rows [][]string, paint func(i int, s string) string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	writeRow := func(cells []string, paint func(i int, s string) string) {
		sb.WriteString("  ")
		for i, cell := range cells {
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(paint(i, pad(cell, widths[i])))
		}
		sb.WriteString("\n")
	}

	writeRow(header, func(_ int, s string) string { return s })
	for _, row := range rows {
		writeRow(row, paint)
	}
}

// maxCellWidth caps browsed values so wide text does not wrap the table.
const maxCellWidth = 40

// RenderRows writes a table of database rows to w. NULL shows as "NULL" and
// long values are truncated.
func (r Renderer) RenderRows(w io.Writer, columns []string, rows []types.Record) error {
	cells := make([][]string, 0, len(rows))
	for _, rec := range rows {
		line := make([]string, len(columns))
		for i := range columns {
			if i >= len(rec) || rec[i] == nil {
				line[i] = "NULL"
				continue
			}
			text := strings.ReplaceAll(types.ToText(rec[i]), "\n", " ")
			line[i] = runewidth.Truncate(text, maxCellWidth, "…")
		}
		cells = append(cells, line)
	}

	var sb strings.Builder
	writeTable(&sb, columns, cells, func(_ int, s string) string {
		if strings.TrimSpace(s) == "NULL" {
			return r.paint(color.Gray, s)
		}
		return s
	})
	fmt.Fprintf(&sb, "\n(%d rows)\n", len(rows))
	_, err := io.WriteString(w, sb.String())
	return err
}

func describeError(e migrator.ReportError) string {
	var where []string
	if e.Chunk > 0 {
		where = append(where, fmt.Sprintf("chunk %d", e.Chunk))
	}
	if e.Row > 0 {
		where = append(where, fmt.Sprintf("row %d", e.Row))
	}
	if e.Column != "" {
		where = append(where, fmt.Sprintf("column %s", e.Column))
	}
	if len(where) == 0 {
		return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Stage, strings.Join(where, ", "), e.Message)
}

// Marshal encodes rep as YAML or JSON, chosen by the file extension of path.
func Marshal(path string, rep *migrator.Report) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Marshal(rep)
	case ".json":
		return json.MarshalIndent(rep, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported report format %q (use .yaml, .yml or .json)", filepath.Ext(path))
	}
}

// WriteFile writes rep to path as YAML or JSON.
func WriteFile(path string, rep *migrator.Report) error {
	data, err := Marshal(path, rep)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}
