package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestAppErrorKinds(t *testing.T) {
	tests := []struct {
		err    error
		kind   Kind
		target error
		code   codes.Code
		http   int
	}{
		{ExtractionError("bad pdf", nil), KindExtraction, ErrExtraction, codes.InvalidArgument, http.StatusUnprocessableEntity},
		{InvalidInputError("bad form"), KindInvalidInput, ErrInvalidInput, codes.InvalidArgument, http.StatusUnprocessableEntity},
		{AuthenticationError("no key", nil), KindAuthentication, ErrAuthentication, codes.Unauthenticated, http.StatusUnauthorized},
		{RateLimitError("slow down", nil), KindRateLimit, ErrRateLimit, codes.ResourceExhausted, http.StatusTooManyRequests},
		{ModelError("garbled", nil), KindModel, ErrModel, codes.Unavailable, http.StatusBadGateway},
		{FormattingError("cell too long", nil), KindFormatting, ErrFormatting, codes.Internal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			wrapped := fmt.Errorf("stage: %w", tt.err)
			if KindOf(wrapped) != tt.kind {
				t.Fatalf("KindOf = %s", KindOf(wrapped))
			}
			if !errors.Is(wrapped, tt.target) {
				t.Fatal("errors.Is must match the kind sentinel through wrapping")
			}
			if got := status.Code(wrapped); got != tt.code {
				t.Fatalf("grpc code = %s, want %s", got, tt.code)
			}
			if got := HTTPStatus(wrapped); got != tt.http {
				t.Fatalf("http status = %d, want %d", got, tt.http)
			}
		})
	}
}

func TestUnknownErrorsAreInternal(t *testing.T) {
	err := errors.New("boom")
	if KindOf(err) != KindInternal {
		t.Fatalf("KindOf = %s", KindOf(err))
	}
	if HTTPStatus(err) != http.StatusInternalServerError {
		t.Fatalf("HTTPStatus = %d", HTTPStatus(err))
	}
	if UserMessage(err) == "boom" {
		t.Fatal("raw error text must not reach the user")
	}
}

func TestAppErrorKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := ModelError("The model call failed.", cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause must be reachable with errors.Is")
	}
	if errors.Is(err, ErrRateLimit) {
		t.Fatal("a model error is not a rate limit error")
	}
	if UserMessage(err) != "The model call failed." {
		t.Fatalf("UserMessage = %q", UserMessage(err))
	}
	if WrapError(nil, "x") != nil {
		t.Fatal("WrapError(nil) must be nil")
	}
}
