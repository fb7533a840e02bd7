package apiclient

import "errors"

// Error codes returned by Client methods.
const (
	CodeIsFileFailed            = "is_file-failed"
	CodeDeleteFileFailed        = "delete_file-failed"
	CodeGetFileFailed           = "get_file-failed"
	CodeUploadFailed            = "upload_file-failed"
	CodeUploadQuotaReached      = "upload_file-failed-quota_reached"
	CodeUploadInvalidPath       = "upload_file-failed-invalid_path"
	CodeUploadJSONDecodeFailure = "upload_file-failed-json_decode-error"
)

// Error is a failure reported by the files API, or detected before a
// request was sent. Transport failures are never wrapped in an Error.
type Error struct {
	Code    string
	Message string
	// StatusCode is the HTTP response code, 0 if no response was involved.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code, so errors.Is(err, &Error{Code: ...}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// ErrorCode returns the code of the first *Error in err's chain, or "".
func ErrorCode(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// IsQuotaReached reports whether err is the files API's out-of-quota response.
func IsQuotaReached(err error) bool {
	return ErrorCode(err) == CodeUploadQuotaReached
}
