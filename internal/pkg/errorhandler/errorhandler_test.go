package errorhandler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/opulence/opulence-api/internal/pkg/logger"
)

func contextWithBuffer(buf *bytes.Buffer) context.Context {
	l := zerolog.New(buf).With().Str("request_id", "req-9").Logger()
	return logger.WithContext(context.Background(), &l)
}

func TestLogExternalServiceErrorUsesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := contextWithBuffer(&buf)

	LogExternalServiceError(ctx, "email", "coupon_promotion", errors.New("rate limited"))

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-9"`)
	assert.Contains(t, out, `"external_service":"email"`)
	assert.Contains(t, out, `"operation":"coupon_promotion"`)
	assert.Contains(t, out, "rate limited")
}

func TestHandleErrorWritesEnvelopeAndLogsWarnForClientErrors(t *testing.T) {
	var buf bytes.Buffer
	ctx := contextWithBuffer(&buf)
	rr := httptest.NewRecorder()

	HandleError(ctx, rr, http.StatusConflict, "CONFLICT", "already running", nil)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "CONFLICT")
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"request_id":"req-9"`)
}
