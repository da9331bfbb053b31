// Package schemas embeds the JSON Schemas of the service's public payloads.
package schemas

import "embed"

// Schema file names.
const (
	JobSnapshot    = "job_snapshot.schema.json"
	UploadResponse = "upload_response.schema.json"
	Event          = "event.schema.json"
)

//go:embed *.schema.json
var FS embed.FS

// Names lists every embedded schema.
func Names() []string {
	return []string{JobSnapshot, UploadResponse, Event}
}
