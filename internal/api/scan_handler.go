package api

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"fractalscan/app"
	"fractalscan/domain/chat"
	"fractalscan/domain/core"
	"fractalscan/domain/fractal"
	"fractalscan/internal/errors"
	"fractalscan/internal/report"

	"github.com/gin-gonic/gin"
)

// ScanRequest is the body of POST /fractal_scan
type ScanRequest struct {
	ConversationID string         `json:"conversation_id,omitempty"`
	Logs           []chat.Message `json:"logs"`
	Mode           string         `json:"mode,omitempty"`
}

// BatchRequest is the body of POST /fractal_scan/batch
type BatchRequest struct {
	Conversations []BatchConversation `json:"conversations"`
}

// BatchConversation is one entry of a batch request
type BatchConversation struct {
	ID   string         `json:"id"`
	Logs []chat.Message `json:"logs"`
	Mode string         `json:"mode,omitempty"`
}

// BatchItemResponse holds either a scan or an error for one conversation
type BatchItemResponse struct {
	ID    string          `json:"id"`
	Scan  *fractal.Record `json:"scan,omitempty"`
	Error *ErrorResponse  `json:"error,omitempty"`
}

// BatchResponse is the body returned by POST /fractal_scan/batch
type BatchResponse struct {
	Results   []BatchItemResponse `json:"results"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func newErrorResponse(err error) *ErrorResponse {
	return &ErrorResponse{Error: errors.Message(err), Code: errors.GetCode(err)}
}

// writeError answers with the status mapped from the error code. Internal
// causes are logged, never returned.
func (s *Server) writeError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			Code:  errors.CodeValidationError,
		})
		return
	}

	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, newErrorResponse(err))
}

// decodeBody binds a JSON body. An empty body leaves v zero so handlers report
// the missing-logs case; oversized bodies keep their *http.MaxBytesError.
func decodeBody(c *gin.Context, v interface{}) error {
	err := c.ShouldBindJSON(v)
	if err == nil || stderrors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return err
	}
	return errors.ValidationError(fmt.Sprintf("invalid JSON body: %v", err))
}

// parseConversationID validates a client-supplied ID; an empty one stays empty
func parseConversationID(raw string) (core.ConversationID, error) {
	if raw == "" {
		return "", nil
	}
	id, err := core.ParseConversationID(raw)
	if err != nil {
		return "", errors.ValidationError(err.Error())
	}
	return id, nil
}

// parseScanRequest turns the body into a service request. A missing or empty
// logs array is the InvalidInput case.
func (s *Server) parseScanRequest(c *gin.Context) (app.ScanRequest, error) {
	var body ScanRequest
	if err := decodeBody(c, &body); err != nil {
		return app.ScanRequest{}, err
	}

	conversationID, err := parseConversationID(body.ConversationID)
	if err != nil {
		return app.ScanRequest{}, err
	}

	modeName := body.Mode
	if modeName == "" {
		modeName = c.Query("mode")
	}
	mode, err := chat.ParseBranchingMode(modeName)
	if err != nil {
		return app.ScanRequest{}, errors.ValidationError(err.Error())
	}

	return app.ScanRequest{ConversationID: conversationID, Messages: body.Logs, Mode: mode}, nil
}

func (s *Server) handleScan(c *gin.Context) {
	req, err := s.parseScanRequest(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	rec, err := s.service.Scan(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleBatch(c *gin.Context) {
	var body BatchRequest
	if err := decodeBody(c, &body); err != nil {
		s.writeError(c, err)
		return
	}
	if len(body.Conversations) == 0 {
		s.writeError(c, errors.InvalidInput("No conversations provided"))
		return
	}
	if len(body.Conversations) > s.opts.MaxBatchSize {
		s.writeError(c, errors.ValidationError(fmt.Sprintf("batch of %d conversations exceeds the limit of %d", len(body.Conversations), s.opts.MaxBatchSize)))
		return
	}

	resp := BatchResponse{Results: make([]BatchItemResponse, len(body.Conversations))}

	// conversations with a bad ID or mode are answered directly; the rest go to the batch scanner
	var reqs []app.ScanRequest
	var slots []int
	for i, conv := range body.Conversations {
		resp.Results[i].ID = conv.ID
		if conv.ID == "" {
			resp.Results[i].ID = strconv.Itoa(i)
		}

		id, err := parseConversationID(resp.Results[i].ID)
		if err != nil {
			resp.Results[i].Error = newErrorResponse(err)
			continue
		}
		mode, err := chat.ParseBranchingMode(conv.Mode)
		if err != nil {
			resp.Results[i].Error = newErrorResponse(errors.ValidationError(err.Error()))
			continue
		}
		reqs = append(reqs, app.ScanRequest{ConversationID: id, Messages: conv.Logs, Mode: mode})
		slots = append(slots, i)
	}

	for j, result := range s.service.ScanBatch(c.Request.Context(), reqs) {
		i := slots[j]
		if result.Err != nil {
			resp.Results[i].Error = newErrorResponse(result.Err)
			continue
		}
		resp.Results[i].Scan = result.Record
	}

	for _, item := range resp.Results {
		if item.Error != nil {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleScanReport(c *gin.Context) {
	format, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	req, err := s.parseScanRequest(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	rec, err := s.service.Scan(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.writeReport(c, rec, format)
}

func (s *Server) handleListScans(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(c, errors.ValidationError(fmt.Sprintf("invalid limit %q", raw)))
			return
		}
		limit = n
	}
	if limit > s.opts.MaxListLimit {
		limit = s.opts.MaxListLimit
	}

	records, err := s.service.List(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": records, "count": len(records)})
}

func (s *Server) lookupScan(c *gin.Context) (*fractal.Record, bool) {
	id, err := core.ParseScanID(c.Param("id"))
	if err != nil {
		s.writeError(c, errors.ValidationError(err.Error()))
		return nil, false
	}

	rec, err := s.service.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	return rec, true
}

func (s *Server) handleGetScan(c *gin.Context) {
	if rec, ok := s.lookupScan(c); ok {
		c.JSON(http.StatusOK, rec)
	}
}

func (s *Server) handleGetReport(c *gin.Context) {
	format, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if rec, ok := s.lookupScan(c); ok {
		s.writeReport(c, rec, format)
	}
}

func (s *Server) writeReport(c *gin.Context, rec *fractal.Record, format report.Format) {
	out, err := report.Render(rec, format)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, format.ContentType(), out)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": Version, "ledger": s.service.LedgerDriver()})
}
