package utils

import "time"

const ToolUserAgent = "clipr/1.0"

const (
	PreviewDirPrefix = "clipr-preview-"
	OrphanMaxAge     = 24 * time.Hour
)

const (
	secondsPerHour   = 3600
	secondsPerMinute = 60
)
