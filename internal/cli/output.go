// Package cli provides output formatting and a server client for the Shashin CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/shashin/internal/models"
	"github.com/hyperjump/shashin/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
	// OutputCompact prints one photo per line: URL, then labels.
	OutputCompact SearchOutputFormat = "compact"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (SearchOutputFormat, error) {
	switch f := SearchOutputFormat(s); f {
	case OutputText, OutputJSON, OutputCompact:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteSearchResults writes search results to w in the given format.
// Unknown formats are written as text.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		for _, r := range response.Results {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", r.URL, utils.JoinLabels(r.Labels)); err != nil {
				return err
			}
		}
		return nil
	default:
		return writeSearchResultsText(w, response)
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) error {
	if len(response.Results) == 0 {
		_, err := fmt.Fprintf(w, "\nNo photos found for %q\n", response.Query)
		return err
	}
	fmt.Fprintf(w, "\nFound %d photo(s) in %dms", len(response.Results), response.QueryTime)
	if response.Attempt != "" {
		fmt.Fprintf(w, " (%s)", response.Attempt)
	}
	fmt.Fprint(w, "\n\n")
	for i, r := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "[%d] %s\n", i+1, r.CreatedAt.Local().Format(time.DateTime))
		fmt.Fprintf(w, "Labels: %s\n", utils.Truncate(utils.JoinLabels(r.Labels), 120))
		fmt.Fprintf(w, "%s\n\n", r.URL)
	}
	return nil
}

// Status is the shape of the GET /api/v1/status response.
type Status struct {
	Objects        int64                  `json:"objects"`
	Documents      uint64                 `json:"documents"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

// WriteStatus writes status as text or, for OutputJSON, indented JSON.
func WriteStatus(w io.Writer, status *Status, format SearchOutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}
	fmt.Fprintf(w, "objects:            %d   # stored photos\n", status.Objects)
	fmt.Fprintf(w, "documents:          %d   # indexed photo documents\n", status.Documents)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # photos + database + index on disk\n", *status.DiskUsageBytes)
	}
	if len(status.Config) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		for _, k := range []string{
			"storage_root", "database_path", "index_path",
			"labels_provider", "intent_provider",
			"page_size", "url_expiry_seconds", "watching",
		} {
			if v, ok := status.Config[k]; ok {
				fmt.Fprintf(w, "%-19s %v\n", k+":", v)
			}
		}
	}
	return nil
}
