package auth

import (
	"errors"
	"os"
	"testing"
)

func TestParamNameDefault(t *testing.T) {
	originalParam := os.Getenv("STORY_API_KEY_PARAMETER")
	defer os.Setenv("STORY_API_KEY_PARAMETER", originalParam)

	os.Unsetenv("STORY_API_KEY_PARAMETER")

	if name := paramName(); name != defaultAPIKeyParam {
		t.Errorf("expected default parameter name %q, got %q", defaultAPIKeyParam, name)
	}
}

func TestParamNameOverride(t *testing.T) {
	originalParam := os.Getenv("STORY_API_KEY_PARAMETER")
	defer os.Setenv("STORY_API_KEY_PARAMETER", originalParam)

	os.Setenv("STORY_API_KEY_PARAMETER", "/custom/key-path")

	if name := paramName(); name != "/custom/key-path" {
		t.Errorf("expected overridden parameter name, got %q", name)
	}
}

func TestClassifyErrorInvalidKey(t *testing.T) {
	err := errors.New("googleapi: Error 400: API key not valid. Please pass a valid API key.")

	valErr := classifyError(err)
	if valErr.Type != ErrTypeInvalidKey {
		t.Errorf("expected ErrTypeInvalidKey, got %v", valErr.Type)
	}
}

func TestClassifyErrorQuota(t *testing.T) {
	err := errors.New("rpc error: code = ResourceExhausted desc = quota exceeded")

	valErr := classifyError(err)
	if valErr.Type != ErrTypeQuotaExceeded {
		t.Errorf("expected ErrTypeQuotaExceeded, got %v", valErr.Type)
	}
}

func TestClassifyErrorNetwork(t *testing.T) {
	err := errors.New("dial tcp: lookup generativelanguage.googleapis.com: no such host")

	valErr := classifyError(err)
	if valErr.Type != ErrTypeNetworkError {
		t.Errorf("expected ErrTypeNetworkError, got %v", valErr.Type)
	}
}

func TestClassifyErrorUnknown(t *testing.T) {
	err := errors.New("something completely unexpected")

	valErr := classifyError(err)
	if valErr.Type != ErrTypeUnknown {
		t.Errorf("expected ErrTypeUnknown, got %v", valErr.Type)
	}
}

func TestValidationErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	valErr := &ValidationError{Type: ErrTypeUnknown, Message: "outer", Err: inner}

	if !errors.Is(valErr, inner) {
		t.Error("expected ValidationError to unwrap to inner error")
	}
	if valErr.Error() != "outer: inner" {
		t.Errorf("unexpected error string: %q", valErr.Error())
	}
}
