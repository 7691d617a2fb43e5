package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteText renders doc as a plain-text report with aligned tables.
func WriteText(w io.Writer, doc Document) error {
	title := fmt.Sprintf("Corrosion risk: %s / %s", orDash(doc.Header.ProjectName), orDash(doc.Header.ZoneName))
	if doc.Preview {
		title = "PREVIEW (not saved) " + title
	}
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", len(title)))

	fmt.Fprintf(w, "Standard: %s", doc.Header.StandardName)
	if doc.Header.StandardRevision != "" {
		fmt.Fprintf(w, " (%s)", doc.Header.StandardRevision)
	}
	fmt.Fprintln(w)
	if doc.Header.VersionNumber > 0 {
		fmt.Fprintf(w, "Version:  %d, %s by %s\n", doc.Header.VersionNumber,
			doc.Header.CreatedAt.Format("2006-01-02 15:04"), doc.Header.CreatedBy)
	}
	fmt.Fprintln(w)

	rows := make([][]string, 0, len(doc.Rows))
	for _, r := range doc.Rows {
		name := r.Name
		if name == "" {
			name = r.Code
		}
		score := strconv.Itoa(r.Rating)
		if r.Unrated {
			score = "unrated (" + r.Reason + ")"
		}
		rows = append(rows, []string{r.DatapointID, name, r.Value, r.Unit, score})
	}
	if err := writeTable(w, []string{"Datapoint", "Parameter", "Value", "Unit", "Rating"}, rows); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nTotal rating: %d\n", doc.Total)
	fmt.Fprintf(w, "Class: %s (%s corrosion stress)\n", doc.Classification.Class, doc.Classification.Stress)

	if len(doc.Metrics) > 0 {
		fmt.Fprintln(w)
		metricRows := make([][]string, 0, len(doc.Metrics))
		for _, m := range doc.Metrics {
			if !m.Result.Computable {
				metricRows = append(metricRows, []string{m.DatapointID, "not computable", "", "", ""})
				continue
			}
			soil := "non-aggressive"
			if m.Result.Aggressive {
				soil = "aggressive"
			}
			metricRows = append(metricRows, []string{
				m.DatapointID,
				soil,
				strconv.FormatFloat(m.Result.MeanLossRate, 'f', 1, 64),
				strconv.Itoa(m.Result.ServiceLife),
				strconv.FormatFloat(m.Result.Reserve, 'f', 3, 64),
			})
		}
		if err := writeTable(w, []string{"Datapoint", "Soil", "Loss µm/a", "Life years", "Reserve mm"}, metricRows); err != nil {
			return err
		}
	}

	if len(doc.Unrated) > 0 {
		fmt.Fprintf(w, "\nWarning: %d reading(s) could not be rated and count as 0.\n", len(doc.Unrated))
	}
	if doc.Recommendations != "" {
		fmt.Fprintf(w, "\nRecommendations:\n%s\n", doc.Recommendations)
	}

	fmt.Fprintf(w, "\n--\nAnalyst: %s", orDash(doc.Footer.Analyst.DisplayName))
	if doc.Footer.Digest != "" {
		fmt.Fprintf(w, "  digest %s", doc.Footer.Digest)
	}
	fmt.Fprintf(w, "  generated %s\n", doc.Footer.GeneratedAt.Format("2006-01-02 15:04"))
	return nil
}

func writeTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{Left: tw.Off, Right: tw.Off, Top: tw.Off, Bottom: tw.Off},
			Settings: tw.Settings{
				Separators: tw.Separators{BetweenColumns: tw.Off},
			},
		}),
	)
	table.Header(headers)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
