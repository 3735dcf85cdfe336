package youtube

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

var (
	ErrQuotaExceeded     = errors.New("youtube: quota exceeded")
	ErrCredentialInvalid = errors.New("youtube: credential rejected")
	ErrUpstream          = errors.New("youtube: upstream error")
)

// ErrorKind classifies a failed API call.
type ErrorKind int

const (
	KindUpstream ErrorKind = iota
	KindQuotaExceeded
	KindCredentialInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindCredentialInvalid:
		return "credential_invalid"
	default:
		return "upstream"
	}
}

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Kind       ErrorKind
	Message    string
	Reason     string
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindQuotaExceeded:
		return fmt.Sprintf("YouTube API quota exceeded - please try again later (%s)", e.Message)
	case KindCredentialInvalid:
		return fmt.Sprintf("YouTube API rejected the credential - please run 'subfeed auth' to re-authenticate (%s)", e.Message)
	default:
		return fmt.Sprintf("YouTube API error (status %d): %s", e.StatusCode, e.Message)
	}
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrQuotaExceeded:
		return e.Kind == KindQuotaExceeded
	case ErrCredentialInvalid:
		return e.Kind == KindCredentialInvalid
	case ErrUpstream:
		return e.Kind == KindUpstream
	}
	return false
}

var quotaReasons = map[string]bool{
	"quotaExceeded":         true,
	"dailyLimitExceeded":    true,
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

// errorStatus picks the gRPC-style status that googleapi.Error does not keep.
type errorStatus struct {
	Error struct {
		Status string `json:"status"`
	} `json:"error"`
}

// classify turns a non-2xx response into an *APIError. body is the already
// consumed response body.
func classify(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	var gerr *googleapi.Error
	if errors.As(googleapi.CheckResponse(resp), &gerr) {
		apiErr.Message = gerr.Message
		if len(gerr.Errors) > 0 {
			apiErr.Reason = gerr.Errors[0].Reason
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	if apiErr.Message == "" {
		apiErr.Message = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		apiErr.Kind = KindQuotaExceeded
	case http.StatusForbidden:
		if isQuota(gerr, body) {
			apiErr.Kind = KindQuotaExceeded
		} else {
			apiErr.Kind = KindCredentialInvalid
		}
	case http.StatusUnauthorized:
		apiErr.Kind = KindCredentialInvalid
	}
	return apiErr
}

// isQuota prefers structured reasons and status, then falls back to the
// message text.
func isQuota(gerr *googleapi.Error, body []byte) bool {
	if gerr != nil {
		for _, item := range gerr.Errors {
			if quotaReasons[item.Reason] {
				return true
			}
		}
	}

	var st errorStatus
	if json.Unmarshal(body, &st) == nil && st.Error.Status == "RESOURCE_EXHAUSTED" {
		return true
	}

	return gerr != nil && strings.Contains(strings.ToLower(gerr.Message), "quota")
}
