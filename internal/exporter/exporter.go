// Package exporter renders the obligations collection back to CSV, the
// format the team circulates outside the tool.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"suretakip/internal/dates"
	"suretakip/internal/domain"
)

// Header is the exported column order.
var Header = []string{"Proje", "Yükümlülük Türü", "Yükümlülük", "Son Tarih", "Notlar"}

// WriteCSV writes one row per obligation. Deadlines render as DD.MM.YYYY;
// a comment thread is flattened into the notes column so the discussion
// survives the round trip into a spreadsheet.
func WriteCSV(w io.Writer, obligations []domain.Obligation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, o := range obligations {
		if err := cw.Write([]string{
			o.ProjectName,
			o.ObligationType,
			o.ObligationDescription,
			dates.Format(o.Deadline.Time),
			notesColumn(o),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func notesColumn(o domain.Obligation) string {
	if len(o.Comments) == 0 {
		return o.Notes
	}
	parts := make([]string, 0, len(o.Comments))
	for _, c := range o.Comments {
		parts = append(parts, fmt.Sprintf("%s: %s (%s)", c.User, c.Text, dates.Format(c.Timestamp.Time)))
	}
	thread := "Yorumlar: " + strings.Join(parts, "; ")
	if o.Notes == "" {
		return thread
	}
	return o.Notes + " | " + thread
}
