package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/brainspark/engine/internal/auth"
	"github.com/brainspark/engine/internal/grading"
	"github.com/brainspark/engine/internal/ratelimit"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{auth.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
		{auth.ErrPermission, http.StatusForbidden, "permission_denied"},
		{ratelimit.ErrExhausted, http.StatusTooManyRequests, "rate_limited"},
		{grading.E(grading.CodeInvalidArgument, "bad field"), http.StatusBadRequest, "invalid_argument"},
		{grading.E(grading.CodeNotFound, "no such question"), http.StatusNotFound, "not_found"},
		{grading.E(grading.CodeTimeout, "budget exceeded"), http.StatusGatewayTimeout, "timeout"},
		{grading.E(grading.CodeUpstreamFailure, "backend down"), http.StatusBadGateway, "upstream_failure"},
		{grading.E(grading.CodeContentRejected, "unsafe"), http.StatusUnprocessableEntity, "content_rejected"},
		{grading.E(grading.CodeInternal, "oops"), http.StatusInternalServerError, "internal"},
		{errors.New("anything else"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.status {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.status)
		}
		if got := codeFor(tc.err); got != tc.code {
			t.Errorf("codeFor(%v) = %q, want %q", tc.err, got, tc.code)
		}
	}
}

func TestStatusFor_WrappedError(t *testing.T) {
	err := fmt.Errorf("resolve: %w", grading.E(grading.CodeNotFound, "missing"))
	if got := statusFor(err); got != http.StatusNotFound {
		t.Errorf("statusFor wrapped = %d, want 404", got)
	}
}

func TestPublicMessage_HidesBackendDetail(t *testing.T) {
	internal := &grading.Error{
		Code:    grading.CodeUpstreamFailure,
		Message: "grading backend error",
		Err:     errors.New("dial tcp 10.0.0.3:443: connection refused"),
	}
	msg := publicMessage(internal)
	if msg != "grading backend unavailable" {
		t.Errorf("publicMessage = %q, leaked backend detail", msg)
	}

	client := grading.E(grading.CodeInvalidArgument, "studentAnswer is required")
	if got := publicMessage(client); got != client.Error() {
		t.Errorf("publicMessage = %q, want the client-facing error text", got)
	}
}
