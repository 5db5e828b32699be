// Package lambda adapts the scan API to API Gateway proxy events.
package lambda

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"fractalscan/app"
	"fractalscan/domain/chat"
	"fractalscan/domain/core"
	"fractalscan/internal"
	"fractalscan/internal/errors"
	"fractalscan/internal/report"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
)

type scanRequest struct {
	ConversationID string         `json:"conversation_id,omitempty"`
	Logs           []chat.Message `json:"logs"`
	Mode           string         `json:"mode,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Handler serves POST /fractal_scan and POST /fractal_scan/report
type Handler struct {
	service *app.ScanService
	maxLogs int
	logger  *internal.Logger
}

// NewHandler validates its dependencies. maxLogs <= 0 means unlimited.
func NewHandler(service *app.ScanService, maxLogs int, logger *internal.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.ConfigInvalid("scan service is required")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Handler{service: service, maxLogs: maxLogs, logger: logger.With("lambda")}, nil
}

// Handle answers one API Gateway proxy request
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := req.RequestContext.RequestID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	if req.HTTPMethod != "" && req.HTTPMethod != http.MethodPost {
		return h.reject(correlationID, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed", Code: errors.CodeValidationError}), nil
	}

	body := req.Body
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return h.fail(correlationID, errors.ValidationError("body is not valid base64")), nil
		}
		body = string(decoded)
	}

	var in scanRequest
	if strings.TrimSpace(body) != "" {
		if err := json.Unmarshal([]byte(body), &in); err != nil {
			return h.fail(correlationID, errors.ValidationError(fmt.Sprintf("invalid JSON body: %v", err))), nil
		}
	}
	if h.maxLogs > 0 && len(in.Logs) > h.maxLogs {
		return h.fail(correlationID, errors.ValidationError(fmt.Sprintf("%d logs exceed the limit of %d", len(in.Logs), h.maxLogs))), nil
	}

	var conversationID core.ConversationID
	if in.ConversationID != "" {
		id, err := core.ParseConversationID(in.ConversationID)
		if err != nil {
			return h.fail(correlationID, errors.ValidationError(err.Error())), nil
		}
		conversationID = id
	}

	modeName := in.Mode
	if modeName == "" {
		modeName = req.QueryStringParameters["mode"]
	}
	mode, err := chat.ParseBranchingMode(modeName)
	if err != nil {
		return h.fail(correlationID, errors.ValidationError(err.Error())), nil
	}

	// the report format is checked before anything is scanned or recorded
	wantReport := strings.HasSuffix(strings.TrimRight(req.Path, "/"), "/report")
	var format report.Format
	if wantReport {
		if format, err = report.ParseFormat(req.QueryStringParameters["format"]); err != nil {
			return h.fail(correlationID, err), nil
		}
	}

	rec, err := h.service.Scan(ctx, app.ScanRequest{ConversationID: conversationID, Messages: in.Logs, Mode: mode})
	if err != nil {
		return h.fail(correlationID, err), nil
	}

	if wantReport {
		out, err := report.Render(rec, format)
		if err != nil {
			return h.fail(correlationID, err), nil
		}
		return h.respond(correlationID, http.StatusOK, format.ContentType(), string(out)), nil
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return h.fail(correlationID, errors.Wrap(err, "failed to encode scan")), nil
	}
	return h.respond(correlationID, http.StatusOK, "application/json", string(payload)), nil
}

func (h *Handler) fail(correlationID string, err error) events.APIGatewayProxyResponse {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request %s failed: %v", correlationID, err)
	}
	return h.reject(correlationID, status, errorResponse{Error: errors.Message(err), Code: errors.GetCode(err)})
}

func (h *Handler) reject(correlationID string, status int, body errorResponse) events.APIGatewayProxyResponse {
	payload, _ := json.Marshal(body)
	return h.respond(correlationID, status, "application/json", string(payload))
}

func (h *Handler) respond(correlationID string, status int, contentType, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":     contentType,
			"X-Correlation-Id": correlationID,
		},
		Body: body,
	}
}
