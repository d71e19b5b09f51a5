package config

import (
	"os"
	"strings"
)

// ImportInline disables the background job path: spreadsheet imports run
// inside the upload request instead of being dispatched. Useful for local
// development without Pub/Sub or a worker process.
//
// Set via env:
// - OFFER_IMPORT_INLINE=true
func ImportInline() bool {
	return envBool("OFFER_IMPORT_INLINE", false)
}

// ImportPushEndpointEnabled gates the Pub/Sub push executor endpoint.
//
// Set via env:
// - OFFER_IMPORT_PUSH_ENDPOINT=false
func ImportPushEndpointEnabled() bool {
	return envBool("OFFER_IMPORT_PUSH_ENDPOINT", true)
}

// ImportPublishEnabled gates best-effort Pub/Sub publishing of queued import
// jobs. The poll dispatcher picks jobs up regardless; publishing only lowers
// latency.
//
// Set via env:
// - OFFER_IMPORT_PUBLISH=true
func ImportPublishEnabled() bool {
	return envBool("OFFER_IMPORT_PUBLISH", false)
}

// ImportCreateTopicEnabled lets the publisher create the topic on first
// use. Off in production, where infra owns topic creation.
//
// Set via env:
// - OFFER_IMPORT_CREATE_TOPIC=true
func ImportCreateTopicEnabled() bool {
	return envBool("OFFER_IMPORT_CREATE_TOPIC", false)
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
