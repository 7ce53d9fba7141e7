// package formatter exports a rearranged playlist and its analysis to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/segue/internal/analysis"
	"github.com/desertthunder/segue/internal/models"
	"github.com/desertthunder/segue/internal/shared"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Summary holds the scores of a rearrange run.
//
// Scores without a comparable neighbour are reported as 0 since JSON has no infinity.
type Summary struct {
	InputScore float64 `json:"input_score"`
	Score      float64 `json:"score"`
	Improved   bool    `json:"improved"`
	Skipped    int     `json:"skipped"`
}

// Rearranged is an ordered playlist together with its analysis report.
type Rearranged struct {
	Playlist models.Playlist `json:"playlist"`
	Tracks   []models.Track  `json:"tracks"`
	Report   analysis.Report `json:"report"`
	Summary  Summary         `json:"summary"`
}

// NewRearranged builds an export view, replacing non-finite scores.
func NewRearranged(pl models.Playlist, tracks []models.Track, report analysis.Report, summary Summary) *Rearranged {
	summary.InputScore = Finite(summary.InputScore)
	summary.Score = Finite(summary.Score)
	report.Min, report.Max, report.Mean = Finite(report.Min), Finite(report.Max), Finite(report.Mean)
	pl.TrackCount = len(tracks)
	return &Rearranged{Playlist: pl, Tracks: tracks, Report: report, Summary: summary}
}

// Finite returns v, or 0 for infinities and NaN.
func Finite(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}

var csvHeaders = []string{"Position", "ID", "Name", "Artists", "Key", "Camelot", "BPM", "Valence", "Energy", "Popularity"}

func trackRow(i int, t models.Track) []string {
	return []string{
		strconv.Itoa(i + 1),
		t.ID,
		t.Name,
		t.JoinedArtists(),
		models.KeyName(t.Key, t.Mode),
		models.Camelot(t.Key, t.Mode),
		strconv.Itoa(t.BPM),
		strconv.FormatFloat(t.Valence, 'f', 3, 64),
		strconv.FormatFloat(t.Energy, 'f', 3, 64),
		strconv.Itoa(t.Popularity),
	}
}

// ExportToCSV converts the ordered tracks to CSV with one row per track in playlist order
func ExportToCSV(r *Rearranged) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range r.Tracks {
		if err := writer.Write(trackRow(i, track)); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

func trackTable(r *Rearranged) table.Writer {
	tw := table.NewWriter()
	header := make(table.Row, len(csvHeaders))
	for i, h := range csvHeaders {
		header[i] = h
	}
	tw.AppendHeader(header)
	for i, t := range r.Tracks {
		cells := trackRow(i, t)
		row := make(table.Row, len(cells))
		for j, c := range cells {
			row[j] = c
		}
		tw.AppendRow(row)
	}
	return tw
}

// ExportToMarkdown converts the playlist to Markdown with the analysis summary and optional chart images
func ExportToMarkdown(r *Rearranged, charts []string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", r.Playlist.Name)

	if r.Playlist.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", r.Playlist.Description)
	}

	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(r.Tracks))
	fmt.Fprintf(&buf, "**Visibility**: %s\n", shared.VisibilityString(r.Playlist.Public))
	fmt.Fprintf(&buf, "**Score**: %.3f (input %.3f)\n\n", r.Summary.Score, r.Summary.InputScore)

	buf.WriteString("## Analysis\n\n")
	for _, line := range r.Report.Lines() {
		if rest, ok := strings.CutPrefix(line, "\t - "); ok {
			fmt.Fprintf(&buf, "- %s\n", rest)
			continue
		}
		fmt.Fprintf(&buf, "%s\n\n", line)
	}

	if len(charts) > 0 {
		buf.WriteString("## Charts\n\n")
		for _, c := range charts {
			fmt.Fprintf(&buf, "![%s](%s)\n\n", strings.TrimSuffix(filepath.Base(c), filepath.Ext(c)), c)
		}
	}

	buf.WriteString("## Tracks\n\n")
	buf.WriteString(trackTable(r).RenderMarkdown())
	buf.WriteString("\n")

	return buf.Bytes(), nil
}

// ExportToText converts the playlist to plain text
func ExportToText(r *Rearranged) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", r.Playlist.Name)
	if r.Playlist.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", r.Playlist.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n", len(r.Tracks))
	fmt.Fprintf(&buf, "Score: %.3f (input %.3f)\n\n", r.Summary.Score, r.Summary.InputScore)

	for _, line := range r.Report.Lines() {
		buf.WriteString(line + "\n")
	}
	buf.WriteString("\n")

	for i, track := range r.Tracks {
		fmt.Fprintf(&buf, "%d. %s [%s, %d bpm]\n", i+1, track.Label(), models.Camelot(track.Key, track.Mode), track.BPM)
	}

	return buf.Bytes(), nil
}

// ToMetadataJSON generates a JSON representation of the playlist, summary and report (without tracks)
func ToMetadataJSON(r *Rearranged) ([]byte, error) {
	return shared.MarshalJSON(struct {
		Playlist models.Playlist `json:"playlist"`
		Summary  Summary         `json:"summary"`
		Report   analysis.Report `json:"report"`
	}{r.Playlist, r.Summary, r.Report}, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports the playlist to CSV format with accompanying metadata JSON file.
//
// Defaults to playlist ID as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(r *Rearranged, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = baseName(r)
	}

	csvData, err := ExportToCSV(r)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(r)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory string
	Files     []string
}

// WriteMarkdownExport exports the playlist to {dir}/README.md.
//
// Directory name defaults to the playlist ID. Charts are linked relative to the directory when
// they live inside it.
func WriteMarkdownExport(r *Rearranged, outputDir string, charts []string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = baseName(r)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	links := make([]string, len(charts))
	for i, c := range charts {
		links[i] = c
		if rel, err := filepath.Rel(outputDir, c); err == nil && !strings.HasPrefix(rel, "..") {
			links[i] = filepath.ToSlash(rel)
		}
	}

	mdData, err := ExportToMarkdown(r, links)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	return &MarkdownExportResult{Directory: outputDir, Files: []string{mdFile}}, nil
}

// WriteTextExport exports the playlist to plain text format.
//
// Defaults to {playlist.ID}_tracks.txt as the filename.
func WriteTextExport(r *Rearranged, path string) (string, error) {
	if path == "" {
		path = baseName(r) + "_tracks.txt"
	}

	textData, err := ExportToText(r)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// WriteJSONExport writes the whole export as indented JSON.
//
// Defaults to {playlist.ID}.json as the filename.
func WriteJSONExport(r *Rearranged, path string) (string, error) {
	if path == "" {
		path = baseName(r) + ".json"
	}

	data, err := shared.MarshalJSON(r, true)
	if err != nil {
		return "", fmt.Errorf("JSON marshal failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("JSON write failed: %w", err)
	}
	return path, nil
}

// Write exports r in the given format and returns the files created.
//
// For csv the path is a base path; for markdown it is a directory. An empty path picks the
// format's default name.
func Write(r *Rearranged, format, path string, charts []string) ([]string, error) {
	switch format {
	case "csv":
		res, err := WriteCSVExport(r, path)
		if err != nil {
			return nil, fmt.Errorf("CSV export failed: %w", err)
		}
		return []string{res.TracksFile, res.MetadataFile}, nil
	case "md", "markdown":
		res, err := WriteMarkdownExport(r, path, charts)
		if err != nil {
			return nil, fmt.Errorf("markdown export failed: %w", err)
		}
		return res.Files, nil
	case "txt":
		file, err := WriteTextExport(r, path)
		if err != nil {
			return nil, fmt.Errorf("text export failed: %w", err)
		}
		return []string{file}, nil
	case "json":
		file, err := WriteJSONExport(r, path)
		if err != nil {
			return nil, fmt.Errorf("JSON export failed: %w", err)
		}
		return []string{file}, nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q (csv, md, txt, json)", shared.ErrInvalidArgument, format)
	}
}

func baseName(r *Rearranged) string {
	if r.Playlist.ID != "" {
		return r.Playlist.ID
	}
	return "rearranged"
}
