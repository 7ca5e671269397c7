package model

import "time"

type Photo struct {
	ID               int64     `json:"id"`
	StopID           int64     `json:"bus_stop_id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	FilePath         string    `json:"-"`
	FileSize         int64     `json:"file_size"`
	MimeType         string    `json:"mime_type"`
	IsMain           bool      `json:"is_main"`
	UploadedAt       time.Time `json:"uploaded_at"`
	UploadedBy       *string   `json:"uploaded_by,omitempty"`
	UploaderName     string    `json:"uploader_name"`
}
