// Package render formats evaluation reports as terminal tables.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/samber/lo"

	"github.com/ahrav/go-sleepeval/internal/application"
	"github.com/ahrav/go-sleepeval/internal/domain"
)

// Options controls table formatting.
type Options struct {
	// Precision is the number of decimals printed for percentages and
	// attention weights.
	Precision int
	// NoColor disables all styling.
	NoColor bool
	// Classes names the stage labels in class-index order. Class indices
	// are printed when it is shorter than the confusion matrix.
	Classes []string
}

// DefaultOptions prints two decimals with the sleep-stage names.
func DefaultOptions() Options {
	return Options{Precision: 2, Classes: domain.SleepStages}
}

// styles holds the lipgloss styles used for one table.
type styles struct {
	header  lipgloss.Style
	cell    lipgloss.Style
	summary lipgloss.Style
	title   lipgloss.Style
	border  lipgloss.Style
}

func newStyles(noColor bool) styles {
	base := lipgloss.NewStyle().Padding(0, 1)
	if noColor {
		return styles{header: base, cell: base, summary: base, title: lipgloss.NewStyle(), border: lipgloss.NewStyle()}
	}
	return styles{
		header:  base.Bold(true).Foreground(lipgloss.Color("252")),
		cell:    base,
		summary: base.Italic(true).Foreground(lipgloss.Color("244")),
		title:   lipgloss.NewStyle().Bold(true),
		border:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// newTable creates a bordered table whose last summaryRows data rows are
// styled as aggregates.
func newTable(st styles, rows int, summaryRows int) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(st.border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return st.header
			case row >= rows-summaryRows:
				return st.summary
			default:
				return st.cell
			}
		})
}

func (o Options) number(v float64) string {
	return strconv.FormatFloat(v, 'f', max(o.Precision, 0), 64)
}

func (o Options) className(c int) string {
	if c < len(o.Classes) {
		return o.Classes[c]
	}
	return strconv.Itoa(c)
}

// Table renders a subjects × models table followed by the mean and std
// rows.
func Table(title string, report application.TableReport, opts Options) string {
	st := newStyles(opts.NoColor)
	t := report.Table

	rows := make([][]string, 0, len(t.Subjects)+2)
	for i, subject := range t.Subjects {
		rows = append(rows, append([]string{subject}, lo.Map(t.Values[i], func(v float64, _ int) string {
			return opts.number(v)
		})...))
	}
	rows = append(rows,
		append([]string{"mean"}, lo.Map(report.Summary.Mean, func(v float64, _ int) string { return opts.number(v) })...),
		append([]string{"std"}, lo.Map(report.Summary.Std, func(v float64, _ int) string { return opts.number(v) })...),
	)

	tbl := newTable(st, len(rows), 2).
		Headers(append([]string{"subject"}, t.Models...)...).
		Rows(rows...)
	return joinBlocks(st.title.Render(title), tbl.String())
}

// Confusion renders one model's confusion matrix, rows being true classes
// and columns predicted classes, with per-class precision, recall, F1 and
// support.
func Confusion(mc application.ModelConfusion, opts Options) string {
	st := newStyles(opts.NoColor)
	n := mc.Matrix.NumClasses()

	headers := []string{`true\pred`}
	for c := 0; c < n; c++ {
		headers = append(headers, opts.className(c))
	}
	headers = append(headers, "PR", "RE", "F1", "S")

	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		row := []string{opts.className(i)}
		for j := 0; j < n; j++ {
			row = append(row, strconv.Itoa(mc.Matrix[i][j]))
		}
		m := mc.PerClass[i]
		row = append(row, opts.number(m.Precision), opts.number(m.Recall), opts.number(m.F1), strconv.Itoa(m.Support))
		rows = append(rows, row)
	}

	tbl := newTable(st, len(rows), 0).Headers(headers...).Rows(rows...)
	title := fmt.Sprintf("%s  acc=%s%%  epochs=%d", mc.Model, opts.number(mc.Accuracy), mc.Matrix.Total())
	return joinBlocks(st.title.Render(title), tbl.String())
}

// Confusions renders every model's confusion report in order.
func Confusions(reports []application.ModelConfusion, opts Options) string {
	return joinBlocks(lo.Map(reports, func(mc application.ModelConfusion, _ int) string {
		return Confusion(mc, opts)
	})...)
}

// Hypnogram summarizes the traces of one subject: accuracy, wrong-epoch
// count and mean attention per model.
func Hypnogram(traces []domain.HypnogramTrace, opts Options) string {
	st := newStyles(opts.NoColor)
	if len(traces) == 0 {
		return ""
	}

	rows := lo.Map(traces, func(tr domain.HypnogramTrace, _ int) []string {
		att := "-"
		if len(tr.Attention) > 0 {
			mean, _ := domain.MeanStd(tr.Attention)
			att = opts.number(mean)
		}
		return []string{
			tr.Model,
			strconv.Itoa(len(tr.YTrue)),
			opts.number(tr.Accuracy),
			strconv.Itoa(len(tr.WrongEpochs)),
			att,
		}
	})

	tbl := newTable(st, len(rows), 0).
		Headers("model", "epochs", "acc", "wrong", "attention").
		Rows(rows...)
	return joinBlocks(st.title.Render("hypnogram "+traces[0].Subject), tbl.String())
}

// Experts renders the accuracy table of the extracted expert result sets.
func Experts(report application.ExpertReport, opts Options) string {
	title := fmt.Sprintf("experts of %s: %s", report.Source, strings.Join(report.Experts, ", "))
	return Table(title, report.Table, opts)
}

// Voters renders the accuracy table of the ensemble result sets.
func Voters(report application.VoterReport, opts Options) string {
	title := "ensembles over " + strings.Join(report.BaseModels, ", ")
	return Table(title, report.Table, opts)
}

func joinBlocks(blocks ...string) string {
	return strings.Join(lo.Compact(blocks), "\n") + "\n"
}
