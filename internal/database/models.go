package database

import "time"

// File kinds as stored in the files collection.
const (
	KindVideo    = "video"
	KindAudio    = "audio"
	KindDocument = "document"
)

// Source values for ArchivedFile.Source.
const (
	SourceDirectUpload = "direct_upload"
	SourceExternalURL  = "external_url"
)

// ArchivedFile is one message in the archive channel, indexed for
// streaming. (channel_id, msg_id) forms the identity; writes are upserts on
// that pair so re-ingesting the same message never duplicates a record.
type ArchivedFile struct {
	MessageID       int       `bson:"msg_id" json:"msg_id"`
	ChannelID       int64     `bson:"channel_id" json:"channel_id"`
	FileUniqueID    string    `bson:"file_unique_id" json:"file_unique_id"`
	DisplayName     string    `bson:"display_name" json:"display_name"`
	SizeBytes       int64     `bson:"size_bytes" json:"size_bytes"`
	MimeType        string    `bson:"mime_type" json:"mime_type"`
	Kind            string    `bson:"kind" json:"kind"`
	DurationSeconds int64     `bson:"duration_seconds,omitempty" json:"duration_seconds,omitempty"`
	QualityLabel    string    `bson:"quality_label,omitempty" json:"quality_label,omitempty"`
	Source          string    `bson:"source" json:"source"`
	ExternalURL     string    `bson:"external_url,omitempty" json:"external_url,omitempty"`
	UploadedBy      int64     `bson:"uploaded_by" json:"uploaded_by"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	IsActive        bool      `bson:"is_active" json:"is_active"`
}
