package service

import (
	"encoding/json"
	"fmt"
	"testing"

	"wpconn/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webhookEnvelope(value string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "waba-1",
			"changes": [{
				"field": "messages",
				"value": %s
			}]
		}]
	}`, value))
}

func TestNormalizePayloadTextMessage(t *testing.T) {
	payload := webhookEnvelope(`{
		"metadata": {"display_phone_number": "15550001111", "phone_number_id": "pn-1"},
		"messages": [{
			"id": "wamid.text1",
			"from": "15557770000",
			"timestamp": "1700000000",
			"type": "text",
			"text": {"body": "hello there"}
		}]
	}`)

	result := NormalizePayload(payload)

	assert.Equal(t, "pn-1", result.PhoneNumberID)
	assert.Empty(t, result.Statuses)
	require.Len(t, result.Messages, 1)

	msg := result.Messages[0]
	assert.Equal(t, "wamid.text1", msg.Wamid)
	assert.Equal(t, "15557770000", msg.From)
	assert.Equal(t, "text", msg.Type)
	assert.Equal(t, models.MessageStatusReceived, msg.Status)
	require.NotNil(t, msg.Content)
	assert.Equal(t, "hello there", *msg.Content)
	assert.Nil(t, msg.MetaMediaID)
}

func TestNormalizePayloadMediaMessage(t *testing.T) {
	payload := webhookEnvelope(`{
		"metadata": {"phone_number_id": "pn-1"},
		"messages": [{
			"id": "wamid.img1",
			"from": "15557770000",
			"type": "image",
			"image": {"id": "media-123", "mime_type": "image/jpeg", "caption": "vacation"}
		}]
	}`)

	result := NormalizePayload(payload)

	require.Len(t, result.Messages, 1)
	msg := result.Messages[0]
	assert.Equal(t, models.MessageStatusMediaPending, msg.Status)
	require.NotNil(t, msg.MetaMediaID)
	assert.Equal(t, "media-123", *msg.MetaMediaID)
	require.NotNil(t, msg.MediaType)
	assert.Equal(t, "image/jpeg", *msg.MediaType)
	require.NotNil(t, msg.Caption)
	assert.Equal(t, "vacation", *msg.Caption)
	assert.Nil(t, msg.Content)
}

func TestNormalizePayloadStatuses(t *testing.T) {
	payload := webhookEnvelope(`{
		"metadata": {"phone_number_id": "pn-1"},
		"statuses": [
			{"id": "wamid.out1", "status": "delivered", "recipient_id": "15557770000"},
			{"id": "wamid.out2", "status": "read", "recipient_id": "15557770000"},
			{"id": "", "status": "sent"}
		]
	}`)

	result := NormalizePayload(payload)

	assert.Empty(t, result.Messages)
	require.Len(t, result.Statuses, 2)
	assert.Equal(t, StatusUpdate{Wamid: "wamid.out1", Status: "delivered"}, result.Statuses[0])
	assert.Equal(t, StatusUpdate{Wamid: "wamid.out2", Status: "read"}, result.Statuses[1])
}

func TestNormalizePayloadMixedBatch(t *testing.T) {
	payload := webhookEnvelope(`{
		"metadata": {"phone_number_id": "pn-1"},
		"statuses": [{"id": "wamid.out1", "status": "read"}],
		"messages": [{
			"id": "wamid.in1",
			"from": "15557770000",
			"type": "text",
			"text": {"body": "reply"},
			"context": {"id": "wamid.out1"}
		}]
	}`)

	result := NormalizePayload(payload)

	require.Len(t, result.Statuses, 1)
	require.Len(t, result.Messages, 1)
	require.NotNil(t, result.Messages[0].ReplyToWamid)
	assert.Equal(t, "wamid.out1", *result.Messages[0].ReplyToWamid)
	assert.False(t, result.IsEmpty())
}

func TestNormalizePayloadUnknownTypeStoredVerbatim(t *testing.T) {
	payload := webhookEnvelope(`{
		"metadata": {"phone_number_id": "pn-1"},
		"messages": [{
			"id": "wamid.loc1",
			"from": "15557770000",
			"type": "location",
			"location": {"latitude": 1.5, "longitude": 2.5}
		}]
	}`)

	result := NormalizePayload(payload)

	require.Len(t, result.Messages, 1)
	msg := result.Messages[0]
	assert.Equal(t, "location", msg.Type)
	assert.Equal(t, models.MessageStatusReceived, msg.Status)
	require.NotNil(t, msg.Content)
	assert.Contains(t, *msg.Content, `"latitude": 1.5`)
}

func TestNormalizePayloadMediaWithoutAttachmentObject(t *testing.T) {
	payload := webhookEnvelope(`{
		"metadata": {"phone_number_id": "pn-1"},
		"messages": [{
			"id": "wamid.img2",
			"from": "15557770000",
			"type": "image"
		}]
	}`)

	result := NormalizePayload(payload)

	require.Len(t, result.Messages, 1)
	msg := result.Messages[0]
	assert.Equal(t, models.MessageStatusReceived, msg.Status)
	assert.Nil(t, msg.MetaMediaID)
	assert.NotNil(t, msg.Content)
}

func TestNormalizePayloadDegenerateShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not JSON", `{{{`},
		{"empty object", `{}`},
		{"no entries", `{"object": "whatsapp_business_account", "entry": []}`},
		{"no changes", `{"entry": [{"id": "waba-1", "changes": []}]}`},
		{"no phone_number_id", `{"entry": [{"changes": [{"value": {"metadata": {}}}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizePayload(json.RawMessage(tt.payload))
			assert.True(t, result.IsEmpty())
			assert.Empty(t, result.Statuses)
			assert.Empty(t, result.Messages)
		})
	}
}

func TestNormalizePayloadMessageWithoutIDSkipped(t *testing.T) {
	payload := webhookEnvelope(`{
		"metadata": {"phone_number_id": "pn-1"},
		"messages": [
			{"from": "15557770000", "type": "text", "text": {"body": "no id"}},
			{"id": "wamid.ok", "from": "15557770000", "type": "text", "text": {"body": "kept"}}
		]
	}`)

	result := NormalizePayload(payload)

	require.Len(t, result.Messages, 1)
	assert.Equal(t, "wamid.ok", result.Messages[0].Wamid)
}
