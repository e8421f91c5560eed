// Package battleexport renders battle history as CSV or XLSX.
package battleexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ragrace/internal/domain"
)

// Supported export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the header row shared by both formats.
var columns = []string{
	"Battle ID",
	"Document Name",
	"Page",
	"Status",
	"Side A",
	"Side B",
	"Side C",
	"Side D",
	"Preferred Labels",
	"Winner",
	"Comment",
	"Created At",
}

// Columns returns a copy of the header row.
func Columns() []string {
	return append([]string(nil), columns...)
}

// Writer wraps csv.Writer for exporting battles as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteBattles converts a batch of history items to CSV rows and writes them.
func (w *Writer) WriteBattles(items []domain.BattleHistoryItem) error {
	for i := range items {
		if err := w.csv.Write(Row(&items[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// Row converts one history item to its export columns. Sides are revealed
// here since export is an analysis view.
func Row(item *domain.BattleHistoryItem) []string {
	row := make([]string, len(columns))
	row[0] = item.BattleID.String()
	row[1] = item.DocumentName
	row[2] = strconv.Itoa(item.PageNumber)
	row[3] = string(item.Status)
	for _, a := range item.Assignments {
		for i, label := range domain.BattleLabels {
			if a.Label == label {
				row[4+i] = a.Provider
			}
		}
	}
	row[8] = strings.Join(item.PreferredLabels, ",")
	row[9] = item.Winner
	row[10] = item.Comment
	row[11] = item.CreatedAt.UTC().Format(time.RFC3339)
	return row
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a name for use in Content-Disposition.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns {name}_{YYYY-MM-DD}.{format}.
func BuildFilename(name, format string) string {
	sanitized := SanitizeFilename(name)
	if sanitized == "" {
		sanitized = "battles"
	}
	return fmt.Sprintf("%s_%s.%s", sanitized, time.Now().Format("2006-01-02"), format)
}
