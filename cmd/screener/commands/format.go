package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/wonny/screener/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintHeader prints a titled block header
func PrintHeader(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// printSummary prints the scan summary block
func printSummary(s contracts.ScanSummary) {
	PrintKeyValue("Total", fmt.Sprintf("%d", s.Total), 12)
	PrintKeyValue("Processed", fmt.Sprintf("%d", s.Processed), 12)
	PrintKeyValue("Matched", fmt.Sprintf("%d", s.Matched()), 12)
	PrintKeyValue("Skipped", fmt.Sprintf("%d", s.Skipped), 12)
	PrintKeyValue("Errors", fmt.Sprintf("%d", s.Errors), 12)
	PrintKeyValue("Cache", fmt.Sprintf("%d hits / %d misses", s.CacheHits, s.CacheMisses), 12)
	PrintKeyValue("Duration", s.Duration.Round(time.Millisecond).String(), 12)
	if s.Cancelled {
		PrintWarning("Scan was cancelled; results are partial")
	}
}

// printResults prints the top results as a table
func printResults(results []*contracts.ScanResult, top int) {
	if len(results) == 0 {
		PrintInfo("No symbols matched")
		return
	}
	if top > 0 && len(results) > top {
		results = results[:top]
	}

	widths := []int{8, 7, 10, 50}
	PrintTableHeader([]string{"Symbol", "Score", "Last", "Reasons"}, widths)
	for _, r := range results {
		PrintTableRow([]string{
			r.Symbol,
			fmt.Sprintf("%.1f", r.Score),
			fmt.Sprintf("%.2f", r.LastPrice),
			truncateText(strings.Join(r.Reasons, "; "), widths[3]),
		}, widths)
	}
}

// progressPrinter renders a single-line progress counter on stderr
type progressPrinter struct {
	w io.Writer
}

func newProgressPrinter() *progressPrinter {
	return &progressPrinter{w: os.Stderr}
}

func (p *progressPrinter) update(progress contracts.ScanProgress) {
	fmt.Fprintf(p.w, "\r[Scan] %d/%d processed (%d skipped, %d errors)",
		progress.Processed, progress.Total, progress.Skipped, progress.Errors)
}

func (p *progressPrinter) done() {
	fmt.Fprintln(p.w)
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
