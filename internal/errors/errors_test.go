package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_KeepsInnerCode(t *testing.T) {
	inner := InvalidInput("No logs provided")
	wrapped := Wrap(inner, "scan failed")

	assert.Equal(t, CodeInvalidInput, GetCode(wrapped))
	assert.Equal(t, "scan failed: No logs provided", wrapped.Error())
	assert.True(t, stderrors.Is(wrapped, InvalidInput("")))
	assert.False(t, stderrors.Is(wrapped, NotFound("scan")))
}

func TestWrap_PlainErrorBecomesInternal(t *testing.T) {
	wrapped := Wrapf(fmt.Errorf("boom"), "ledger %s", "append")

	assert.Equal(t, CodeInternalError, GetCode(wrapped))
	assert.Equal(t, "ledger append", Message(wrapped))
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestGetCode_ThroughFmtWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", NotFound("scan"))

	assert.Equal(t, CodeNotFound, GetCode(err))
	assert.Equal(t, "UNKNOWN", GetCode(fmt.Errorf("plain")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{InvalidInput("x"), http.StatusBadRequest},
		{ValidationError("x"), http.StatusBadRequest},
		{NotFound("scan"), http.StatusNotFound},
		{DatabaseError("insert", fmt.Errorf("conn reset")), http.StatusInternalServerError},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}
