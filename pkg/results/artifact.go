package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ArtifactWriter writes run reports to a directory.
type ArtifactWriter struct {
	outputDir string
}

// NewArtifactWriter creates a new artifact writer
func NewArtifactWriter(outputDir string) *ArtifactWriter {
	return &ArtifactWriter{
		outputDir: outputDir,
	}
}

// WriteAll writes the JSON and Markdown reports, plus a CSV of the barcodes
// to retry when any were left behind.
func (w *ArtifactWriter) WriteAll(summary *Summary) error {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := w.WriteSummaryJSON(summary); err != nil {
		return err
	}

	if err := w.WriteSummaryMarkdown(summary); err != nil {
		return err
	}

	if len(summary.Failed) > 0 || len(summary.Unfinished()) > 0 {
		if err := w.WriteRetryCSV(summary); err != nil {
			return err
		}
	}

	return nil
}

// WriteSummaryJSON writes the full summary as JSON
func (w *ArtifactWriter) WriteSummaryJSON(summary *Summary) error {
	path := filepath.Join(w.outputDir, "summary.json")

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write summary JSON: %w", writeErr)
	}

	return nil
}

// WriteSummaryMarkdown writes a human-readable markdown summary
func (w *ArtifactWriter) WriteSummaryMarkdown(summary *Summary) error {
	path := filepath.Join(w.outputDir, "summary.md")

	var md strings.Builder

	md.WriteString("# Reservation Bulk Add Summary\n\n")
	md.WriteString(fmt.Sprintf("**Reservation:** %s\n\n", summary.ReservationID))
	md.WriteString(fmt.Sprintf("**Status:** %s\n\n", summary.Status))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", summary.StartedAt.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Completed:** %s\n\n", summary.FinishedAt.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", summary.Duration.Round(time.Second)))

	md.WriteString("## Result\n\n")
	if summary.Error != "" {
		md.WriteString(fmt.Sprintf("❌ **Error:** %s\n\n", summary.Error))
	} else if summary.Status == StatusSuccess {
		md.WriteString("✅ **Success**\n\n")
	} else {
		md.WriteString("⚠️ **Some barcodes could not be added**\n\n")
	}

	md.WriteString("## Counts\n\n")
	md.WriteString(fmt.Sprintf("- **Total:** %d\n", summary.Total))
	md.WriteString(fmt.Sprintf("- **Added:** %d\n", len(summary.Succeeded)))
	md.WriteString(fmt.Sprintf("- **Already present:** %d\n", len(summary.Duplicate)))
	md.WriteString(fmt.Sprintf("- **Failed:** %d\n", len(summary.Failed)))
	md.WriteString(fmt.Sprintf("- **Not finished:** %d\n\n", len(summary.Unfinished())))

	if len(summary.Failed) > 0 {
		md.WriteString("## Failed\n\n")
		for _, f := range summary.Failed {
			md.WriteString(fmt.Sprintf("- `%s` (%d attempts): %s\n", f.Barcode, f.Attempts, f.Reason))
		}
		md.WriteString("\n")
	}

	if unfinished := summary.Unfinished(); len(unfinished) > 0 {
		md.WriteString("## Not Finished\n\n")
		for _, barcode := range unfinished {
			md.WriteString(fmt.Sprintf("- `%s`\n", barcode))
		}
		md.WriteString("\n")
	}

	if writeErr := os.WriteFile(path, []byte(md.String()), 0600); writeErr != nil {
		return fmt.Errorf("failed to write summary markdown: %w", writeErr)
	}

	return nil
}

// WriteRetryCSV writes failed and unfinished barcodes, one per row, in the
// same format the loader reads so the file can be fed to another run.
func (w *ArtifactWriter) WriteRetryCSV(summary *Summary) error {
	path := filepath.Join(w.outputDir, "retry.csv")

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create retry CSV: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	for _, f := range summary.Failed {
		if err := writer.Write([]string{f.Barcode}); err != nil {
			return fmt.Errorf("failed to write retry CSV: %w", err)
		}
	}
	for _, barcode := range summary.Unfinished() {
		if err := writer.Write([]string{barcode}); err != nil {
			return fmt.Errorf("failed to write retry CSV: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write retry CSV: %w", err)
	}
	return nil
}
