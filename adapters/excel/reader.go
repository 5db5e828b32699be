// Package excel reads chat logs from JSON, CSV and XLSX files and exports
// scans as XLSX workbooks.
package excel

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fractalscan/domain/chat"
	"fractalscan/internal/errors"

	"github.com/xuri/excelize/v2"
)

// File types recognised by extension
const (
	FileTypeJSON = "json"
	FileTypeCSV  = "csv"
	FileTypeXLSX = "xlsx"
)

// DataReader reads a chat log file
type DataReader struct {
	filePath string
	fileType string
}

// NewDataReader picks the file type from the extension; unknown extensions are read as JSON
func NewDataReader(filePath string) *DataReader {
	fileType := FileTypeJSON
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv":
		fileType = FileTypeCSV
	case ".xlsx", ".xlsm":
		fileType = FileTypeXLSX
	}
	return &DataReader{filePath: filePath, fileType: fileType}
}

// FileType returns json, csv or xlsx
func (r *DataReader) FileType() string { return r.fileType }

// ReadMessages loads every message in the file
func (r *DataReader) ReadMessages() ([]chat.Message, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.NotFound(fmt.Sprintf("%s file %s", strings.ToUpper(r.fileType), r.filePath))
	}

	if r.fileType == FileTypeJSON {
		data, err := os.ReadFile(r.filePath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", r.filePath)
		}
		return DecodeLogs(data)
	}

	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	return RowsToMessages(data)
}

// ReadData reads a CSV or XLSX file into headers and rows
func (r *DataReader) ReadData() (*ExcelData, error) {
	switch r.fileType {
	case FileTypeCSV:
		return r.readCSVData()
	case FileTypeXLSX:
		return r.readExcelData()
	default:
		return nil, errors.ValidationError(fmt.Sprintf("%s is not a tabular file", r.filePath))
	}
}

// readExcelData reads the first sheet of the workbook
func (r *DataReader) readExcelData() (*ExcelData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open Excel file %s", r.filePath)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %q", sheet)
	}
	log.Printf("[DataReader] sheet %q read in %.2fms (%d rows)", sheet, float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))

	return processRows(rows)
}

func (r *DataReader) readCSVData() (*ExcelData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open CSV file %s", r.filePath)
	}
	defer file.Close()
	return ReadCSV(file)
}

// ReadCSV parses CSV content with a header row
func ReadCSV(in io.Reader) (*ExcelData, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("failed to read CSV: %v", err))
	}
	return processRows(rows)
}

// processRows converts raw string rows into ExcelData
func processRows(rows [][]string) (*ExcelData, error) {
	if len(rows) < 2 {
		return nil, errors.InvalidInput("No logs provided")
	}

	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(header))
	}

	dataRows := make([]RawRowData, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rowData := make(RawRowData, len(headers))
		empty := true
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
				empty = empty && rowData[headers[j]] == ""
			}
		}
		if !empty {
			dataRows = append(dataRows, rowData)
		}
	}

	return &ExcelData{Headers: headers, Rows: dataRows}, nil
}

// RowsToMessages maps tabular rows onto messages. A parent or replies column
// marks every row as carrying that field, so auto mode resolves the same way
// it would for the equivalent JSON.
func RowsToMessages(data *ExcelData) ([]chat.Message, error) {
	if !data.Has(colTimestamp) {
		return nil, errors.ValidationError("log file has no timestamp column")
	}
	if len(data.Rows) == 0 {
		return nil, errors.InvalidInput("No logs provided")
	}

	hasParent := data.Has(colParent)
	hasReplies := data.Has(colReplies)

	msgs := make([]chat.Message, 0, len(data.Rows))
	for i, row := range data.Rows {
		line := i + 2 // header is line 1

		ts, err := parseTimestamp(row[colTimestamp])
		if err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("row %d: %v", line, err))
		}

		msg := chat.Message{
			Timestamp: ts,
			Sender:    firstNonEmpty(row[colSender], row[colUserID]),
			Text:      firstNonEmpty(row[colMessage], row[colText]),
		}

		if hasReplies {
			msg = msg.WithReplies(splitReplies(row[colReplies])...)
		}
		if hasParent {
			var parent *int64
			if v := row[colParent]; v != "" && !strings.EqualFold(v, "null") {
				p, err := parseTimestamp(v)
				if err != nil {
					return nil, errors.ValidationError(fmt.Sprintf("row %d: parent: %v", line, err))
				}
				parent = &p
			}
			msg = msg.WithParent(parent)
		}

		msgs = append(msgs, msg)
	}

	log.Printf("[DataReader] %d messages decoded (parent column: %v, replies column: %v)", len(msgs), hasParent, hasReplies)
	return msgs, nil
}

// DecodeLogs accepts {"logs":[...]} or a bare JSON array of messages
func DecodeLogs(data []byte) ([]chat.Message, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.InvalidInput("No logs provided")
	}

	var msgs []chat.Message
	if data[0] == '[' {
		if err := json.Unmarshal(data, &msgs); err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("invalid log JSON: %v", err))
		}
	} else {
		var doc struct {
			Logs []chat.Message `json:"logs"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("invalid log JSON: %v", err))
		}
		msgs = doc.Logs
	}

	if len(msgs) == 0 {
		return nil, errors.InvalidInput("No logs provided")
	}
	return msgs, nil
}

func parseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("missing timestamp")
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	return int64(math.Floor(f)), nil
}

func splitReplies(s string) []chat.ReplyID {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' })
	out := make([]chat.ReplyID, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, chat.ReplyID(f))
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
