// Package api holds the JSON wire types exchanged between the client and
// the server over HTTP, plus the route paths both sides agree on.
package api

import "time"

const (
	PathRegister = "/api/v1/auth/register"
	PathSalt     = "/api/v1/auth/salt"
	PathLogin    = "/api/v1/auth/login"
	PathRefresh  = "/api/v1/auth/refresh"
	PathRecords  = "/api/v1/records"
	PathRecord   = "/api/v1/records/{id}"
	PathChanges  = "/api/v1/records/changes"
	PathPhotos   = "/api/v1/photos"
	PathHealth   = "/healthz"
	PathMetrics  = "/metrics"
)

// Record is a row of the service_records resource.
//
// PhotoURL is the legacy single-photo column. Readers treat the record's
// photos as the ordered union of PhotoURL and PhotoURLs.
type Record struct {
	ID            string    `json:"id"`
	ClientName    string    `json:"client_name"`
	VesselName    string    `json:"vessel_name"`
	StartDateTime time.Time `json:"start_date_time"`
	Details       string    `json:"details"`
	PhotoURL      string    `json:"photo_url,omitempty"`
	PhotoURLs     []string  `json:"photo_urls"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	UserID        string    `json:"user_id"`
}

// Change operations carried by ChangeEvent.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// ChangeEvent is pushed over the realtime channel after a successful write.
// It is only a trigger; clients refetch instead of applying it.
type ChangeEvent struct {
	UserID   string    `json:"user_id"`
	RecordID string    `json:"record_id"`
	Op       string    `json:"op"`
	At       time.Time `json:"at"`
}

// PhotoUploadRequest asks for an upload slot for content with the given digest.
type PhotoUploadRequest struct {
	SHA256      string `json:"sha256"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// PhotoUploadResponse returns the durable public URL. When Exists is false
// the client must PUT the bytes to UploadURL before using URL.
type PhotoUploadResponse struct {
	URL       string `json:"url"`
	UploadURL string `json:"upload_url,omitempty"`
	Exists    bool   `json:"exists"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

type PingResponse struct {
	Status string `json:"status"`
}
