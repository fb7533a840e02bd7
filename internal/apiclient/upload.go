package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/uploadsfs/internal/logging"
	"github.com/fruitsalade/uploadsfs/internal/metrics"
)

const (
	uploadTimeoutFloor = 10
	// Assumed worst-case link speed: 500 KiB per second.
	uploadBytesPerSecond = 500 * 1024
)

// UploadResponse is the files API's reply to a successful upload.
type UploadResponse struct {
	Filename string `json:"filename"`
}

// calculateUploadTimeout gives uploads a 10 second floor plus one second per
// 500 KiB.
func calculateUploadTimeout(size int64) time.Duration {
	if size < 0 {
		size = 0
	}
	return time.Duration(uploadTimeoutFloor+size/uploadBytesPerSecond) * time.Second
}

// UploadFile sends the file at localPath to uploadPath and returns the
// filename the server stored it under. Callers must use the returned name,
// which may differ from uploadPath.
//
// The whole file is buffered in memory.
func (c *Client) UploadFile(ctx context.Context, localPath, uploadPath string) (string, error) {
	data, err := readLocalFile(localPath)
	if err != nil {
		return "", &Error{
			Code:    CodeUploadInvalidPath,
			Message: fmt.Sprintf("Invalid file path `%s` for upload", localPath),
			Err:     err,
		}
	}

	size := int64(len(data))
	timeout := calculateUploadTimeout(size)

	resp, err := c.callAPI(ctx, "upload_file", uploadPath, http.MethodPut, requestOptions{
		Headers: map[string]string{
			"Content-Type":   detectContentType(localPath, data),
			"Content-Length": strconv.FormatInt(size, 10),
			"Connection":     "Keep-Alive",
		},
		Timeout:       timeout,
		Body:          data,
		ContentLength: size,
	})
	if err != nil {
		return "", err
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return "", &Error{
			Code:       CodeUploadQuotaReached,
			Message:    "The file storage quota for this site has been reached",
			StatusCode: resp.StatusCode,
		}
	case resp.StatusCode != http.StatusOK:
		return "", &Error{
			Code:       CodeUploadFailed,
			Message:    fmt.Sprintf("Failed to upload file `%s` (response code: %d)", uploadPath, resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	var result UploadResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return "", &Error{
			Code:       CodeUploadJSONDecodeFailure,
			Message:    fmt.Sprintf("Failed to decode upload response for `%s`: %v", uploadPath, err),
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}

	metrics.RecordUploadBytes(size)
	logging.Debug("file uploaded",
		zap.String("local_path", localPath),
		zap.String("upload_path", uploadPath),
		zap.String("stored_as", result.Filename),
		zap.Int64("size", size))

	return result.Filename, nil
}

func readLocalFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return os.ReadFile(path)
}

func detectContentType(path string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	if len(data) > 0 {
		return http.DetectContentType(data)
	}
	return "application/octet-stream"
}
