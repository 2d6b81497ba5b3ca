package service

import (
	"encoding/json"

	"wpconn/internal/models"
)

// StatusUpdate is one provider delivery-status transition, keyed by wamid.
type StatusUpdate struct {
	Wamid  string
	Status string
}

// InboundMessage is one new-message descriptor produced by normalization.
// Media messages carry MetaMediaID and start media_pending; the binary
// transfer is deferred to the media pipeline, never performed inline.
type InboundMessage struct {
	Wamid        string
	From         string
	Type         string
	Status       string
	Content      *string
	MediaType    *string
	Caption      *string
	MetaMediaID  *string
	ReplyToWamid *string
}

// NormalizedPayload is the decoded view of one raw webhook event.
type NormalizedPayload struct {
	PhoneNumberID string
	Statuses      []StatusUpdate
	Messages      []InboundMessage
}

// IsEmpty reports whether the event requires no action at all.
func (n NormalizedPayload) IsEmpty() bool {
	return n.PhoneNumberID == "" || (len(n.Statuses) == 0 && len(n.Messages) == 0)
}

// NormalizePayload maps one raw provider payload into status updates and
// new-message descriptors. It is a pure function and it never fails: payloads
// that do not decode, or that miss entry/changes/phone_number_id, come back
// empty — benign provider variance must not consume the retry budget.
func NormalizePayload(raw json.RawMessage) NormalizedPayload {
	var payload models.WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return NormalizedPayload{}
	}
	if len(payload.Entry) == 0 || len(payload.Entry[0].Changes) == 0 {
		return NormalizedPayload{}
	}

	value := payload.Entry[0].Changes[0].Value
	result := NormalizedPayload{PhoneNumberID: value.Metadata.PhoneNumberID}
	if result.PhoneNumberID == "" {
		return NormalizedPayload{}
	}

	for _, status := range value.Statuses {
		if status.ID == "" || status.Status == "" {
			continue
		}
		result.Statuses = append(result.Statuses, StatusUpdate{
			Wamid:  status.ID,
			Status: status.Status,
		})
	}

	for _, rawMsg := range value.Messages {
		if msg, ok := normalizeMessage(rawMsg); ok {
			result.Messages = append(result.Messages, msg)
		}
	}

	return result
}

func normalizeMessage(raw json.RawMessage) (InboundMessage, bool) {
	var msg models.WebhookMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return InboundMessage{}, false
	}
	if msg.ID == "" {
		return InboundMessage{}, false
	}

	out := InboundMessage{
		Wamid:  msg.ID,
		From:   msg.From,
		Type:   msg.Type,
		Status: models.MessageStatusReceived,
	}

	if msg.Context != nil && msg.Context.ID != "" {
		id := msg.Context.ID
		out.ReplyToWamid = &id
	}

	switch {
	case msg.Type == "text":
		if msg.Text != nil {
			body := msg.Text.Body
			out.Content = &body
		}

	case models.MediaTypes[msg.Type]:
		media, ok := extractMedia(raw, msg.Type)
		if !ok {
			// Media message without an attachment object: degrade to the
			// serialized item rather than failing the event.
			content := string(raw)
			out.Content = &content
			break
		}
		out.Status = models.MessageStatusMediaPending
		id := media.ID
		out.MetaMediaID = &id
		if media.MimeType != "" {
			mime := media.MimeType
			out.MediaType = &mime
		}
		if media.Caption != "" {
			caption := media.Caption
			out.Caption = &caption
		}

	default:
		// Unmapped message types are stored verbatim, not rejected.
		content := string(raw)
		out.Content = &content
	}

	return out, true
}

// extractMedia pulls the attachment object living under the dynamic
// type-named key (msg["image"], msg["video"], ...).
func extractMedia(raw json.RawMessage, msgType string) (models.WebhookMedia, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.WebhookMedia{}, false
	}
	mediaRaw, ok := fields[msgType]
	if !ok {
		return models.WebhookMedia{}, false
	}
	var media models.WebhookMedia
	if err := json.Unmarshal(mediaRaw, &media); err != nil || media.ID == "" {
		return models.WebhookMedia{}, false
	}
	return media, true
}
