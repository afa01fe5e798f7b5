package verify

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/jackzampolin/docket/internal/layout"
)

const issuesFilePrefix = "verification_issues_"

// WriteArtifacts writes the verification outputs into the case folder's
// logs directory: a readable report, CSV and XLSX manifests, and the
// structured issues JSON the repair engine consumes. It returns the
// issues JSON path.
func WriteArtifacts(root *layout.Root, report *RunReport) (string, error) {
	logsDir := root.Dir(layout.LogsDir)
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return "", fmt.Errorf("create logs dir: %w", err)
	}
	stamp := report.GeneratedAt.Format("20060102_150405")

	reportPath := filepath.Join(logsDir, "verification_report_"+stamp+".txt")
	if err := os.WriteFile(reportPath, []byte(RenderReport(report)), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	csvPath := filepath.Join(logsDir, "verification_manifest_"+stamp+".csv")
	if err := writeCSV(csvPath, report); err != nil {
		return "", err
	}

	xlsxPath := filepath.Join(logsDir, "verification_manifest_"+stamp+".xlsx")
	if err := writeXLSX(xlsxPath, report); err != nil {
		return "", err
	}

	issuesPath := filepath.Join(logsDir, issuesFilePrefix+stamp+".json")
	if err := writeIssuesJSON(issuesPath, report); err != nil {
		return "", err
	}
	return issuesPath, nil
}

// LatestIssuesPath finds the newest issues JSON in the logs directory.
func LatestIssuesPath(root *layout.Root) (string, error) {
	pattern := filepath.Join(root.Dir(layout.LogsDir), issuesFilePrefix+"*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no verification issues found in %s, run verify first", layout.LogsDir)
	}
	// Timestamped names sort chronologically.
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

// LoadReport reads an issues JSON back into a RunReport.
func LoadReport(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read issues file: %w", err)
	}
	var report RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse issues file %s: %w", path, err)
	}
	return &report, nil
}

func writeIssuesJSON(path string, report *RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write issues: %w", err)
	}
	return nil
}

var manifestHeaders = []string{"File", "Source PDF", "Status", "Accuracy %", "Pages Scored", "Issues"}

func manifestRow(f FileReport) []string {
	return []string{
		f.File,
		f.PDF,
		string(f.Status),
		strconv.FormatFloat(f.MeanAccuracy*100, 'f', 1, 64),
		strconv.Itoa(f.PagesScored),
		strconv.Itoa(len(f.Issues)),
	}
}

func writeCSV(path string, report *RunReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(manifestHeaders); err != nil {
		return err
	}
	for _, file := range report.Files {
		if err := w.Write(manifestRow(file)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeXLSX(path string, report *RunReport) error {
	f := excelize.NewFile()
	const sheet = "Verification"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defaultIndex, _ := f.GetSheetIndex("Sheet1"); defaultIndex != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	for i, h := range manifestHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for rowIdx, file := range report.Files {
		for colIdx, v := range manifestRow(file) {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	_ = f.SetColWidth(sheet, "A", "B", 48)
	_ = f.SetColWidth(sheet, "C", "C", 10)
	_ = f.SetColWidth(sheet, "D", "F", 14)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
