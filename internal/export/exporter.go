// Package export writes a user's learning progress to an Excel workbook:
// a summary sheet plus one sheet per collection.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/internal/stats"
)

// progressHeader is the column layout of a collection sheet.
var progressHeader = []interface{}{
	"Card", "Word", "Side", "Status", "Stability", "Difficulty",
	"Interval (days)", "Reviews", "Last reviewed", "Next review",
}

// Exporter builds progress report workbooks.
type Exporter struct {
	progress *database.ProgressRepository
	streaks  *stats.StreakService
	now      func() time.Time
}

// NewExporter creates an Exporter on the shared database connection.
func NewExporter(streaks *stats.StreakService) *Exporter {
	return &Exporter{
		progress: database.NewProgressRepository(),
		streaks:  streaks,
		now:      time.Now,
	}
}

// BuildWorkbook assembles the progress report for a user and saves it to
// path. Collections the user has no progress in are omitted.
func (e *Exporter) BuildWorkbook(ctx context.Context, userID int64, path string) error {
	rows, err := e.progress.ListByUser(ctx, database.DB, userID)
	if err != nil {
		return err
	}
	summary, err := e.streaks.Summarize(ctx, userID, 30)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := e.writeSummarySheet(f, summary, len(rows)); err != nil {
		return err
	}

	// Rows arrive grouped by collection; start a sheet on each change.
	var sheet string
	rowNum := 0
	for i := range rows {
		r := &rows[i]
		if sheet == "" || r.CollectionName != sheet {
			sheet = sheetName(r.CollectionName)
			if _, err := f.NewSheet(sheet); err != nil {
				return fmt.Errorf("failed to create sheet %q: %v", sheet, err)
			}
			if err := f.SetSheetRow(sheet, "A1", &progressHeader); err != nil {
				return fmt.Errorf("failed to write header: %v", err)
			}
			rowNum = 2
		}

		word := ""
		if r.WordText != nil {
			word = *r.WordText
		}
		cells := []interface{}{
			r.Front, word, string(r.Side), string(r.Status),
			r.Stability, r.Difficulty, r.IntervalDays, r.ReviewCount,
			formatTime(r.LastReviewedAt), formatTime(r.NextReviewAt),
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", rowNum), &cells); err != nil {
			return fmt.Errorf("failed to write row: %v", err)
		}
		rowNum++
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %v", err)
	}
	return nil
}

// writeSummarySheet fills the default sheet with aggregate numbers and the
// trailing daily point history.
func (e *Exporter) writeSummarySheet(f *excelize.File, summary *stats.Summary, trackedSides int) error {
	const sheet = "Sheet1"
	if err := f.SetSheetName(sheet, "Summary"); err != nil {
		return fmt.Errorf("failed to rename summary sheet: %v", err)
	}

	lines := [][]interface{}{
		{"Generated", e.now().Format("2006-01-02 15:04")},
		{"Tracked sides", trackedSides},
		{"Total reviews", summary.TotalReviews},
		{"Current streak (days)", summary.CurrentStreak},
		{"Longest streak (days)", summary.LongestStreak},
		{"Retention target", summary.Retention},
		{},
		{"Date", "Points"},
	}
	row := 1
	for i := range lines {
		if len(lines[i]) > 0 {
			if err := f.SetSheetRow("Summary", fmt.Sprintf("A%d", row), &lines[i]); err != nil {
				return fmt.Errorf("failed to write summary: %v", err)
			}
		}
		row++
	}
	for _, d := range summary.Daily {
		cells := []interface{}{d.Date.Format("2006-01-02"), d.Points}
		if err := f.SetSheetRow("Summary", fmt.Sprintf("A%d", row), &cells); err != nil {
			return fmt.Errorf("failed to write summary: %v", err)
		}
		row++
	}
	return nil
}

// sheetName trims a collection name to the 31-character sheet name limit.
func sheetName(name string) string {
	runes := []rune(name)
	if len(runes) > 31 {
		return string(runes[:31])
	}
	if name == "" {
		return "Collection"
	}
	return name
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
