package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dtnitsch/ragebait-block/pkg/parser"
	"github.com/dtnitsch/ragebait-block/pkg/scanner"
	"github.com/dtnitsch/ragebait-block/pkg/storage"
)

// Statuses recorded per page.
const (
	StatusFiltered = "filtered"
	StatusSkipped  = "skipped"
	StatusError    = "error"
)

// PageResult is what the filter pipeline knows about one page.
type PageResult struct {
	URL        string
	Site       string
	PageID     string
	OutputPath string
	SizeBytes  int64
	Info       parser.PageInfo
	Stats      scanner.Stats
	// Skipped is set when the page was left untouched.
	Skipped error
	Error   error
}

// RunReport summarizes a filter run.
type RunReport struct {
	GeneratedAt string        `json:"generated_at"`
	TotalURLs   int           `json:"total_urls"`
	Filtered    int           `json:"filtered"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	Totals      scanner.Stats `json:"totals"`
	Results     []PageSummary `json:"results"`
}

// PageSummary is one row of the report.
type PageSummary struct {
	URL          string         `json:"url"`
	Status       string         `json:"status"`
	Site         string         `json:"site,omitempty"`
	Title        string         `json:"title,omitempty"`
	Excerpt      string         `json:"excerpt,omitempty"`
	PageID       string         `json:"page_id,omitempty"`
	OutputPath   string         `json:"output_path,omitempty"`
	SizeBytes    int64          `json:"size_bytes,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Stats        *scanner.Stats `json:"stats,omitempty"`
}

// Build aggregates page results.
func Build(results []PageResult, now time.Time) RunReport {
	r := RunReport{
		GeneratedAt: now.Format(time.RFC3339),
		TotalURLs:   len(results),
		Results:     make([]PageSummary, 0, len(results)),
	}

	for _, res := range results {
		summary := PageSummary{
			URL:     res.URL,
			Site:    res.Site,
			PageID:  res.PageID,
			Title:   res.Info.Title,
			Excerpt: res.Info.Excerpt,
		}

		switch {
		case res.Error != nil:
			r.Failed++
			summary.Status = StatusError
			summary.ErrorMessage = res.Error.Error()
		case res.Skipped != nil:
			r.Skipped++
			summary.Status = StatusSkipped
			summary.Reason = res.Skipped.Error()
			summary.OutputPath = res.OutputPath
			summary.SizeBytes = res.SizeBytes
		default:
			r.Filtered++
			summary.Status = StatusFiltered
			summary.OutputPath = res.OutputPath
			summary.SizeBytes = res.SizeBytes
			stats := res.Stats
			summary.Stats = &stats
			r.Totals = add(r.Totals, res.Stats)
		}

		r.Results = append(r.Results, summary)
	}
	return r
}

func add(a, b scanner.Stats) scanner.Stats {
	return scanner.Stats{
		Submitted: a.Submitted + b.Submitted,
		Clean:     a.Clean + b.Clean,
		Toxic:     a.Toxic + b.Toxic,
		Hidden:    a.Hidden + b.Hidden,
		Annotated: a.Annotated + b.Annotated,
		Errors:    a.Errors + b.Errors,
	}
}

// Save writes the report as summary-<date>.json and returns its path.
func Save(r RunReport, s *storage.Storage, now time.Time) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path, err := s.SaveFile(fmt.Sprintf("summary-%s.json", now.Format("2006-01-02")), data)
	if err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	return path, nil
}
