package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"easypce-backend/services/catalog/pipeline"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func Summary(r pipeline.Report) string {
	return fmt.Sprintf(
		"run %s: %d units, %d succeeded, %d failed, %d cancelled in %s",
		r.RunId,
		len(r.Units),
		r.Count(pipeline.Succeeded),
		r.Count(pipeline.Failed),
		r.Count(pipeline.Cancelled),
		r.Finished.Sub(r.Started).Round(time.Millisecond),
	)
}

func cause(u pipeline.Unit, verbose bool) string {
	var lines []string
	if u.Err != nil {
		lines = append(lines, u.Err.Error())
	}
	if verbose {
		lines = append(lines, u.Notes...)
	} else if len(u.Notes) > 0 {
		lines = append(lines, fmt.Sprintf("(%d notes)", len(u.Notes)))
	}
	return strings.Join(lines, "\n")
}

type Options struct {
	// only list units that did not succeed
	FailuresOnly bool
	// list every note instead of counting them
	Verbose bool
	Style   table.Style
}

// Table lays out one row per unit followed by a summary footer.
func Table(r pipeline.Report, opts Options) table.Writer {
	t := table.NewWriter()
	if opts.Style.Name == "" {
		opts.Style = table.StyleRounded
	}
	t.SetStyle(opts.Style)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, WidthMax: 80},
	})

	t.AppendHeader(table.Row{"#", "Kind", "Scope", "State", "Attempts", "Duration", "Cause"})
	for _, u := range r.Units {
		if opts.FailuresOnly && u.State == pipeline.Succeeded {
			continue
		}
		t.AppendRow(table.Row{
			u.Id,
			u.Kind,
			u.Scope(),
			u.State,
			u.Attempts,
			u.Duration().Round(time.Millisecond),
			cause(u, opts.Verbose),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", Summary(r)})
	return t
}

func Render(w io.Writer, r pipeline.Report, opts Options) {
	t := Table(r, opts)
	t.SetOutputMirror(w)
	t.Render()
}
