package meta

// SendPayload is the Graph API message-send request body. Exactly one of
// Text or Media is set; for media sends the attachment object is keyed by
// the message type in the marshaled JSON, which BuildSendBody assembles.
type SendPayload struct {
	To      string
	Type    string
	Body    string
	MediaID string
	Caption string
}

type mediaURLResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	ID       string `json:"id"`
}

type uploadResponse struct {
	ID string `json:"id"`
}

// SendResponse is the subset of the Graph API send response the relay needs.
type SendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *APIError `json:"error,omitempty"`
}

type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return e.Message
}
