package excel

import (
	"fmt"
	"io"
	"sort"

	"fractalscan/domain/fractal"
	"fractalscan/internal/errors"

	"github.com/xuri/excelize/v2"
)

// Sheet names of an exported scan workbook
const (
	SheetTiers   = "Tiers"
	SheetSummary = "Summary"
	SheetSenders = "Senders"
)

// ExportScan writes the scan workbook to path
func ExportScan(path string, rec *fractal.Record) error {
	f, err := buildWorkbook(rec)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "failed to save workbook %s", path)
	}
	return nil
}

// WriteScan streams the scan workbook to w
func WriteScan(w io.Writer, rec *fractal.Record) error {
	f, err := buildWorkbook(rec)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "failed to write workbook")
	}
	return nil
}

func buildWorkbook(rec *fractal.Record) (*excelize.File, error) {
	if rec == nil {
		return nil, errors.ValidationError("no scan to export")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetTiers); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "failed to name tiers sheet")
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "failed to create header style")
	}

	steps := []func(*excelize.File, *fractal.Record, int) error{writeTiers, writeSummary, writeSenders}
	for _, step := range steps {
		if err := step(f, rec, bold); err != nil {
			f.Close()
			return nil, errors.Wrap(err, "failed to build scan workbook")
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func writeTiers(f *excelize.File, rec *fractal.Record, bold int) error {
	if err := f.SetSheetRow(SheetTiers, "A1", &[]interface{}{"tier", "chaos", "aligned"}); err != nil {
		return err
	}
	for i, t := range rec.Tiers() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetTiers, cell, &[]interface{}{t.Tier, t.Chaos, t.Aligned}); err != nil {
			return err
		}
	}
	return f.SetCellStyle(SheetTiers, "A1", "C1", bold)
}

func writeSummary(f *excelize.File, rec *fractal.Record, bold int) error {
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return err
	}

	s := rec.Summary
	rows := [][]interface{}{
		{"metric", "value"},
		{"scan_id", rec.ID.String()},
		{"conversation_id", rec.ConversationID.String()},
		{"branching_mode", rec.Mode.String()},
		{"influence_score", rec.InfluenceScore},
		{"message_count", s.MessageCount},
		{"team_size", s.TeamSize},
		{"fractal_dimension", s.FractalDimension},
		{"alert", s.Alert},
		{"pattern_score", s.PatternScore},
		{"participation_ripple", s.ParticipationRipple},
		{"current_tier", s.CurrentTier},
		{"status", string(s.Status)},
		{"active_tiers", s.ActiveTiers},
		{"aligned_tiers", s.AlignedTiers},
		{"team_health", s.TeamHealth},
	}
	for i, row := range rows {
		row := row
		if err := f.SetSheetRow(SheetSummary, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return err
		}
	}
	return f.SetCellStyle(SheetSummary, "A1", "B1", bold)
}

func writeSenders(f *excelize.File, rec *fractal.Record, bold int) error {
	if len(rec.Summary.SenderInfluence) == 0 {
		return nil
	}
	if _, err := f.NewSheet(SheetSenders); err != nil {
		return err
	}

	senders := make([]string, 0, len(rec.Summary.SenderInfluence))
	for s := range rec.Summary.SenderInfluence {
		senders = append(senders, s)
	}
	sort.Strings(senders)

	if err := f.SetSheetRow(SheetSenders, "A1", &[]interface{}{"sender", "branching"}); err != nil {
		return err
	}
	for i, s := range senders {
		if err := f.SetSheetRow(SheetSenders, fmt.Sprintf("A%d", i+2), &[]interface{}{s, rec.Summary.SenderInfluence[s]}); err != nil {
			return err
		}
	}
	return f.SetCellStyle(SheetSenders, "A1", "B1", bold)
}
