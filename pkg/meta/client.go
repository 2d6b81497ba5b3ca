package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Client is the Graph API capability surface the relay consumes. Tokens are
// per tenant, so every call takes one.
type Client interface {
	ResolveMediaURL(ctx context.Context, token, mediaID string) (string, error)
	OpenMediaStream(ctx context.Context, token, url string) (io.ReadCloser, error)
	UploadMedia(ctx context.Context, token, phoneNumberID string, media io.Reader, contentType string) (string, error)
	SendMessage(ctx context.Context, token, phoneNumberID string, payload SendPayload) (*SendResponse, error)
}

type client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) Client {
	return &client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ResolveMediaURL exchanges a provider media ID for a short-lived download
// URL. An empty URL with a nil error means the provider refused; the caller
// treats that as terminal.
func (c *client) ResolveMediaURL(ctx context.Context, token, mediaID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", c.baseURL, mediaID), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to resolve media url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("media url request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result mediaURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode media url response: %w", err)
	}
	return result.URL, nil
}

// OpenMediaStream opens a streamed read of the media content. The caller owns
// the returned body and must close it; the bytes are never buffered here.
func (c *client) OpenMediaStream(ctx context.Context, token, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download media: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("media download failed with status %d: %s", resp.StatusCode, string(body))
	}

	return resp.Body, nil
}

// UploadMedia streams a media object to the provider and returns its media
// ID. The multipart body is piped, not buffered, so large objects stay off
// the heap.
func (c *client) UploadMedia(ctx context.Context, token, phoneNumberID string, media io.Reader, contentType string) (string, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		if err := writer.WriteField("messaging_product", "whatsapp"); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := writer.WriteField("type", contentType); err != nil {
			pw.CloseWithError(err)
			return
		}
		part, err := writer.CreateFormFile("file", "media_file")
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, media); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	url := fmt.Sprintf("%s/%s/media", c.baseURL, phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("media upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("media upload returned no id")
	}
	return result.ID, nil
}

func (c *client) SendMessage(ctx context.Context, token, phoneNumberID string, payload SendPayload) (*SendResponse, error) {
	body, err := json.Marshal(BuildSendBody(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	var result SendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode send response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		if result.Error != nil {
			return &result, fmt.Errorf("send failed with status %d: %w", resp.StatusCode, result.Error)
		}
		return &result, fmt.Errorf("send failed with status %d", resp.StatusCode)
	}

	return &result, nil
}

// BuildSendBody assembles the Graph API request document. Media attachments
// live under a key named after the message type.
func BuildSendBody(p SendPayload) map[string]interface{} {
	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                p.To,
		"type":              p.Type,
	}

	if p.Type == "text" {
		body["text"] = map[string]string{"body": p.Body}
		return body
	}

	media := map[string]string{"id": p.MediaID}
	if p.Caption != "" {
		media["caption"] = p.Caption
	}
	body[p.Type] = media
	return body
}
