package constants

// Server defaults
const (
	DefaultServerPort         = "8080"
	DefaultReadTimeoutSec     = 15
	DefaultWriteTimeoutSec    = 15
	DefaultIdleTimeoutSec     = 60
	DefaultShutdownTimeoutSec = 30
)

// Worker defaults. Poll intervals follow the low-volume, seconds-latency
// profile of the webhook stream: short fixed sleep when idle, longer sleep
// after an infrastructure failure so a broken store does not storm the log.
const (
	DefaultEventBatchSize  = 50
	DefaultMediaBatchSize  = 10
	DefaultMaxRetries      = 3
	DefaultPollIntervalSec = 1
	DefaultErrorBackoffSec = 5
	DefaultClaimTTLSec     = 60
)

// Meta Graph API defaults
const (
	DefaultGraphAPIBaseURL    = "https://graph.facebook.com/v17.0"
	DefaultGraphAPITimeoutSec = 30
	DefaultForwardTimeoutSec  = 5
)

// Database retry defaults
const (
	DefaultDatabaseRetryAttempts = 3
	DefaultRetryBackoffMs        = 100
	DefaultMaxBackoffMs          = 2000
)

// Media defaults
const (
	DefaultMediaBucket     = "wpconn-media"
	DefaultRedisTTLSec     = 86400
	MediaCopyChunkBytes    = 32 * 1024
	DefaultAPIKeyByteCount = 32
)

// MaxWebhookBodyBytes caps inbound webhook payload reads. Meta batches stay
// far below this; anything larger is hostile.
const MaxWebhookBodyBytes = 4 * 1024 * 1024

// MimeExtensions maps common provider MIME types to storage key extensions.
var MimeExtensions = map[string]string{
	"image/jpeg":               ".jpg",
	"image/png":                ".png",
	"image/webp":               ".webp",
	"video/mp4":                ".mp4",
	"video/3gpp":               ".3gp",
	"audio/aac":                ".aac",
	"audio/mp4":                ".m4a",
	"audio/mpeg":               ".mp3",
	"audio/ogg":                ".ogg",
	"application/pdf":          ".pdf",
	"application/octet-stream": ".bin",
}
