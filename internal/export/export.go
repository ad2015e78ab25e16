// internal/export/export.go
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mhatey/PumpFun-Pump-Portal/internal/ledger"
	"go.uber.org/zap"
)

// Format represents the export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Options configures which positions are exported and where.
type Options struct {
	Format     Format
	StartTime  time.Time
	EndTime    time.Time
	MintFilter string // only positions in this mint
	OnlyClosed bool   // skip positions still held
	OutputDir  string
}

// Summary contains aggregate statistics over the exported positions.
type Summary struct {
	TotalPositions int       `json:"total_positions"`
	OpenPositions  int       `json:"open_positions"`
	UniqueMints    int       `json:"unique_mints"`
	TotalPnlSol    float64   `json:"total_pnl_sol"`
	WinCount       int       `json:"win_count"`
	LossCount      int       `json:"loss_count"`
	WinRate        float64   `json:"win_rate"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
}

// PositionExporter writes the position history to disk for analysis in
// spreadsheets or external tooling.
type PositionExporter struct {
	logger *zap.Logger
}

func NewPositionExporter(logger *zap.Logger) *PositionExporter {
	return &PositionExporter{logger: logger.Named("export")}
}

// Export writes the filtered positions and returns the created file path.
func (e *PositionExporter) Export(positions []ledger.Position, opts Options) (string, error) {
	filtered := filter(positions, opts)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no positions match the export criteria")
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	dir := opts.OutputDir
	if dir == "" {
		dir = "exports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	name := fmt.Sprintf("positions_%s.%s", time.Now().UTC().Format("20060102_150405"), opts.Format)
	path := filepath.Join(dir, name)

	var err error
	switch opts.Format {
	case FormatCSV:
		err = writeCSV(path, filtered)
	case FormatJSON:
		err = writeJSON(path, filtered)
	default:
		return "", fmt.Errorf("unsupported export format: %s", opts.Format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("Positions exported",
		zap.String("path", path),
		zap.Int("count", len(filtered)),
		zap.String("format", string(opts.Format)))
	return path, nil
}

func filter(positions []ledger.Position, opts Options) []ledger.Position {
	var out []ledger.Position
	for _, pos := range positions {
		if opts.MintFilter != "" && pos.Mint != opts.MintFilter {
			continue
		}
		if opts.OnlyClosed && pos.IsOpen() {
			continue
		}
		if !opts.StartTime.IsZero() && pos.CreatedAt.Before(opts.StartTime) {
			continue
		}
		if !opts.EndTime.IsZero() && pos.CreatedAt.After(opts.EndTime) {
			continue
		}
		out = append(out, pos)
	}
	return out
}

func summarize(positions []ledger.Position) Summary {
	summary := Summary{TotalPositions: len(positions)}
	if len(positions) == 0 {
		return summary
	}

	summary.StartDate = positions[0].CreatedAt
	summary.EndDate = positions[len(positions)-1].CreatedAt

	mints := make(map[string]struct{})
	closed := 0
	for _, pos := range positions {
		mints[pos.Mint] = struct{}{}
		if pos.IsOpen() {
			summary.OpenPositions++
			continue
		}
		closed++
		if pos.Pnl == nil {
			continue
		}
		summary.TotalPnlSol += *pos.Pnl
		if *pos.Pnl > 0 {
			summary.WinCount++
		} else if *pos.Pnl < 0 {
			summary.LossCount++
		}
	}
	summary.UniqueMints = len(mints)
	if closed > 0 {
		summary.WinRate = float64(summary.WinCount) / float64(closed) * 100
	}
	return summary
}

func writeCSV(path string, positions []ledger.Position) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{
		"created_at", "mint", "name", "symbol", "status",
		"entry_price", "amount", "stop_loss", "take_profit",
		"exit_price", "pnl_sol",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, pos := range positions {
		exitPrice, pnl := "", ""
		if pos.ExitPrice != nil {
			exitPrice = fmt.Sprintf("%.12f", *pos.ExitPrice)
		}
		if pos.Pnl != nil {
			pnl = fmt.Sprintf("%.9f", *pos.Pnl)
		}
		record := []string{
			pos.CreatedAt.UTC().Format(time.RFC3339),
			pos.Mint,
			pos.Name,
			pos.Symbol,
			string(pos.Status),
			fmt.Sprintf("%.12f", pos.EntryPrice),
			fmt.Sprintf("%.6f", pos.Amount),
			fmt.Sprintf("%.12f", pos.StopLoss),
			fmt.Sprintf("%.12f", pos.TakeProfit),
			exitPrice,
			pnl,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	return nil
}

func writeJSON(path string, positions []ledger.Position) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer file.Close()

	payload := struct {
		ExportTime time.Time         `json:"export_time"`
		Summary    Summary           `json:"summary"`
		Positions  []ledger.Position `json:"positions"`
	}{
		ExportTime: time.Now().UTC(),
		Summary:    summarize(positions),
		Positions:  positions,
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("encode positions: %w", err)
	}
	return nil
}
