package models

import (
	"github.com/smazurov/camhls/internal/ffmpeg"
	"github.com/smazurov/camhls/internal/status"
)

// Health check models
type HealthData struct {
	Status    string `json:"status" example:"ok" doc:"Service status"`
	Message   string `json:"message" example:"3/4 cameras streaming" doc:"Status message"`
	Cameras   int    `json:"cameras" example:"4" doc:"Configured cameras"`
	Streaming int    `json:"streaming" example:"3" doc:"Cameras currently producing segments"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"a1b2c3d" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Camera models
type CameraData struct {
	ID       string `json:"id" example:"front" doc:"Camera identifier"`
	Name     string `json:"name" example:"Front door" doc:"Camera display name"`
	Playlist string `json:"playlist" example:"/hls/front/index.m3u8" doc:"HLS playlist path"`
}

type CameraListData struct {
	Cameras []CameraData `json:"cameras" doc:"Configured cameras"`
	Count   int          `json:"count" example:"2" doc:"Number of cameras"`
}

type CameraListResponse struct {
	Body CameraListData
}

type CameraInput struct {
	CameraID string `path:"camera_id" example:"front" doc:"Camera identifier"`
}

type CameraStatusResponse struct {
	Body status.Record
}

type CameraStatusListData struct {
	Cameras []status.Record `json:"cameras" doc:"Status of every camera"`
	Count   int             `json:"count" example:"2" doc:"Number of cameras"`
}

type CameraStatusListResponse struct {
	Body CameraStatusListData
}

type BulkActionData struct {
	Message string          `json:"message" example:"Started 2 cameras" doc:"Outcome summary"`
	Errors  []string        `json:"errors,omitempty" doc:"Per-camera failures"`
	Cameras []status.Record `json:"cameras" doc:"Status of every camera after the action"`
}

type BulkActionResponse struct {
	Body BulkActionData
}

// OptionsData lists the accepted values for the ffmpeg input hints.
type OptionsData struct {
	Decoders        []ffmpeg.Option `json:"decoders" doc:"Values accepted for decoder"`
	ErrorDetections []ffmpeg.Option `json:"error_detections" doc:"Values accepted for error_detection"`
}

type OptionsResponse struct {
	Body OptionsData
}
