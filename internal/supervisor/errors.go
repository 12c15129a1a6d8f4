package supervisor

import (
	"errors"
	"fmt"
)

// ErrCameraNotFound is returned for an unknown camera id.
var ErrCameraNotFound = errors.New("camera not found")

// ErrShuttingDown is returned by Start once Shutdown has begun.
var ErrShuttingDown = errors.New("supervisor is shutting down")

// CameraError represents a supervisor failure for one camera.
type CameraError struct {
	Code     string
	CameraID string
	Message  string
	Cause    error
}

func (e *CameraError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: camera %s: %s: %v", e.Code, e.CameraID, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: camera %s: %s", e.Code, e.CameraID, e.Message)
}

func (e *CameraError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeCameraNotFound = "CAMERA_NOT_FOUND"
	ErrCodeDirectory      = "DIRECTORY_ERROR"
	ErrCodeLaunch         = "LAUNCH_ERROR"
	ErrCodeShuttingDown   = "SHUTTING_DOWN"
)

func newCameraError(code, cameraID, message string, cause error) *CameraError {
	return &CameraError{
		Code:     code,
		CameraID: cameraID,
		Message:  message,
		Cause:    cause,
	}
}

func notFound(cameraID string) error {
	return newCameraError(ErrCodeCameraNotFound, cameraID, "unknown camera", ErrCameraNotFound)
}
