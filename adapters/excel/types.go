package excel

// RawRowData represents a row of raw spreadsheet data keyed by lowercased header
type RawRowData map[string]string

// ExcelData represents a complete tabular log file
type ExcelData struct {
	Headers []string     // Column headers, lowercased
	Rows    []RawRowData // Data rows
}

// Has reports whether a column with the given header exists
func (d *ExcelData) Has(header string) bool {
	for _, h := range d.Headers {
		if h == header {
			return true
		}
	}
	return false
}

// Column headers understood by the log reader
const (
	colTimestamp = "timestamp"
	colSender    = "sender"
	colUserID    = "user_id"
	colMessage   = "message"
	colText      = "text"
	colParent    = "parent"
	colReplies   = "replies"
)
