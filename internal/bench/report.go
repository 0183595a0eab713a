package bench

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// writeCSV writes a header plus rows into dir/name, creating dir as needed.
func writeCSV(dir, name string, header []string, rows [][]string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("bench: create %q: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("bench: create %q: %w", path, err)
	}
	w := csv.NewWriter(f)
	w.UseCRLF = true
	if err := w.Write(header); err != nil {
		f.Close()
		return "", err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// SaveMetadata writes the run metadata to metadata.json in dir.
func SaveMetadata(dir string, md *Metadata) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("bench: create %q: %w", dir, err)
	}
	path := filepath.Join(dir, "metadata.json")
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return "", fmt.Errorf("bench: marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// WriteReport renders the human-readable benchmark summary to
// benchmark_report.txt in dir.
func WriteReport(dir, voice string, md *Metadata) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("bench: create %q: %w", dir, err)
	}
	path := filepath.Join(dir, "benchmark_report.txt")

	var b strings.Builder
	b.WriteString("==================================\n")
	b.WriteString("ORPHEUS TTS BENCHMARK REPORT\n")
	b.WriteString("==================================\n")
	fmt.Fprintf(&b, "Voice: %s\n", voice)
	fmt.Fprintf(&b, "Date: %s\n", md.Timestamp)
	fmt.Fprintf(&b, "Run Name: %s\n\n", md.RunName)

	b.WriteString("SYSTEM INFORMATION\n")
	b.WriteString("----------------------------------\n")
	fmt.Fprintf(&b, "Go Version: %s\n", md.SystemInfo.GoVersion)
	fmt.Fprintf(&b, "Platform: %s\n", md.SystemInfo.Platform)
	fmt.Fprintf(&b, "Max Tokens: %d\n\n", md.SystemInfo.MaxTokens)

	b.WriteString("INPUT FILE\n")
	b.WriteString("----------------------------------\n")
	if details := md.InputFileDetails; details != nil {
		fmt.Fprintf(&b, "Path: %s\n", details.Path)
		fmt.Fprintf(&b, "Total Characters: %d\n", details.TotalChars)
		fmt.Fprintf(&b, "Total Tokens: %d\n\n", details.TotalTokens)
	} else {
		b.WriteString("Path: Unknown\n")
		b.WriteString("Total Characters: Unknown\n")
		b.WriteString("Total Tokens: Unknown\n\n")
	}

	rec := md.Recommended
	if rec == nil {
		rec = &RecommendedSettings{}
	}
	b.WriteString("RECOMMENDED SETTINGS\n")
	b.WriteString("----------------------------------\n")
	fmt.Fprintf(&b, "Maximum Text Length: %s characters\n", intOrUnknown(rec.MaxLength))
	fmt.Fprintf(&b, "Maximum Tokens: %s\n", intOrUnknown(rec.MaxTokens))
	if rec.Temperature != nil {
		fmt.Fprintf(&b, "Temperature: %s\n", formatFloat(*rec.Temperature))
	}
	if rec.TopP != nil {
		fmt.Fprintf(&b, "Top-p: %s\n", formatFloat(*rec.TopP))
	}
	if rec.RepetitionPenalty != nil {
		fmt.Fprintf(&b, "Repetition Penalty: %s\n", formatFloat(*rec.RepetitionPenalty))
	}
	b.WriteString("\n")

	writeLengthSection(&b, md.Results.TextLength)
	writeSweepSection(&b, "TEMPERATURE TEST RESULTS", "Temperature", temperatureRows(md.Results.Temperature))
	writeSweepSection(&b, "TOP-P TEST RESULTS", "Top-p", topPRows(md.Results.TopP))
	writeSweepSection(&b, "REPETITION PENALTY TEST RESULTS", "Repetition Penalty", repetitionRows(md.Results.RepetitionPenalty))

	b.WriteString("CONCLUSION\n")
	b.WriteString("----------------------------------\n")
	fmt.Fprintf(&b, "For the %s voice, the recommended settings are:\n", voice)
	fmt.Fprintf(&b, "- Maximum text length: %s characters\n", intOrUnknown(rec.MaxLength))
	fmt.Fprintf(&b, "- Maximum tokens: %s\n", intOrUnknown(rec.MaxTokens))
	if rec.Temperature != nil {
		fmt.Fprintf(&b, "- Temperature: %s\n", formatFloat(*rec.Temperature))
	}
	if rec.TopP != nil {
		fmt.Fprintf(&b, "- Top-p: %s\n", formatFloat(*rec.TopP))
	}
	if rec.RepetitionPenalty != nil {
		fmt.Fprintf(&b, "- Repetition Penalty: %s\n", formatFloat(*rec.RepetitionPenalty))
	}
	b.WriteString("\nDetailed results and audio samples are available in the benchmark directory.\n")
	b.WriteString("Complete metadata is available in: metadata.json\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func writeLengthSection(b *strings.Builder, results []LengthResult) {
	b.WriteString("TEXT LENGTH TEST RESULTS\n")
	b.WriteString("----------------------------------\n")
	if len(results) == 0 {
		b.WriteString("No text length tests performed.\n\n")
		return
	}
	var maxLength, maxTokens int
	for _, res := range results {
		if res.Success {
			maxLength = max(maxLength, res.Length)
			maxTokens = max(maxTokens, res.Tokens)
		}
	}
	fmt.Fprintf(b, "Maximum Successful Length: %d characters\n", maxLength)
	fmt.Fprintf(b, "Maximum Successful Tokens: %d\n", maxTokens)
	b.WriteString("Results by Length:\n")
	for _, res := range results {
		fmt.Fprintf(b, "  - %d chars (%d tokens): %s %s\n",
			res.Length, res.Tokens, successMark(res.Success), timeOrNA(res.Success, res.Time))
	}
	b.WriteString("\n")
}

// sweepRow is one already-rendered line of a sweep section.
type sweepRow struct {
	value   string
	success bool
	time    float64
}

func temperatureRows(results []TemperatureRow) []sweepRow {
	rows := make([]sweepRow, len(results))
	for i, res := range results {
		rows[i] = sweepRow{value: formatFloat(res.Temperature), success: res.Success, time: res.Time}
	}
	return rows
}

func topPRows(results []TopPRow) []sweepRow {
	rows := make([]sweepRow, len(results))
	for i, res := range results {
		rows[i] = sweepRow{value: formatFloat(res.TopP), success: res.Success, time: res.Time}
	}
	return rows
}

func repetitionRows(results []RepetitionRow) []sweepRow {
	rows := make([]sweepRow, len(results))
	for i, res := range results {
		rows[i] = sweepRow{value: formatFloat(res.RepetitionPenalty), success: res.Success, time: res.Time}
	}
	return rows
}

func writeSweepSection(b *strings.Builder, title, label string, rows []sweepRow) {
	b.WriteString(title + "\n")
	b.WriteString("----------------------------------\n")
	if len(rows) == 0 {
		fmt.Fprintf(b, "No %s tests performed.\n\n", strings.ToLower(label))
		return
	}
	var (
		fastest *sweepRow
		minTime float64
	)
	for i, row := range rows {
		if row.success && (fastest == nil || row.time < minTime) {
			minTime = row.time
			fastest = &rows[i]
		}
	}
	if fastest != nil {
		fmt.Fprintf(b, "Fastest Successful %s: %s (%.2fs)\n", label, fastest.value, minTime)
	}
	fmt.Fprintf(b, "Results by %s:\n", label)
	for _, row := range rows {
		fmt.Fprintf(b, "  - %s %s: %s %s\n",
			label, row.value, successMark(row.success), timeOrNA(row.success, row.time))
	}
	b.WriteString("\n")
}

func successMark(success bool) string {
	if success {
		return "✓"
	}
	return "✗"
}

func timeOrNA(success bool, seconds float64) string {
	if !success {
		return "N/A"
	}
	return fmt.Sprintf("%.2fs", seconds)
}

func intOrUnknown(v *int) string {
	if v == nil {
		return "Unknown"
	}
	return fmt.Sprintf("%d", *v)
}

// FormatETA renders a duration as H:MM:SS, with a day prefix once the
// estimate crosses 24 hours.
func FormatETA(d time.Duration) string {
	total := int(d.Seconds())
	if total < 0 {
		total = 0
	}
	days := total / 86400
	clock := fmt.Sprintf("%d:%02d:%02d", total%86400/3600, total%3600/60, total%60)
	switch {
	case days == 1:
		return "1 day, " + clock
	case days > 1:
		return fmt.Sprintf("%d days, %s", days, clock)
	}
	return clock
}
