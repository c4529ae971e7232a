package telegram

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const defaultAPIHost = "https://api.telegram.org"

// parse_mode for all outgoing text: the composer UI emits the HTML subset
// (b/i/u/code/a) that Telegram interprets.
const parseModeHTML = "HTML"

type Bot struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewBot(token string) *Bot {
	return NewBotWithHost(token, defaultAPIHost)
}

// NewBotWithHost is used by tests to point the bot at a fake API server.
func NewBotWithHost(token, host string) *Bot {
	return &Bot{
		token:   token,
		baseURL: host + "/bot" + token,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Result is the normalized success outcome of one delivery call.
// A media group yields one message id per item.
type Result struct {
	MessageIDs []int64 `json:"message_ids"`
}

// FirstMessageID returns the id of the (first) sent message, 0 if none.
func (r *Result) FirstMessageID() int64 {
	if r == nil || len(r.MessageIDs) == 0 {
		return 0
	}
	return r.MessageIDs[0]
}

// APIError carries the platform's human-readable rejection text.
type APIError struct {
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error: %s", e.Description)
}

// Deliver performs the correct Bot API call for the given image count:
// 0 - plain message, 1 - single photo with caption, 2+ - media group with
// the caption on the first item only. Images beyond Telegram's limit of 10
// are passed through; the platform's own rejection surfaces as an APIError.
func (b *Bot) Deliver(ctx context.Context, chatID, text string, images []string) (*Result, error) {
	switch len(images) {
	case 0:
		return b.SendMessage(ctx, chatID, text)
	case 1:
		return b.SendPhoto(ctx, chatID, images[0], text)
	default:
		return b.SendMediaGroup(ctx, chatID, text, images)
	}
}

func (b *Bot) SendMessage(ctx context.Context, chatID, text string) (*Result, error) {
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": parseModeHTML,
	}
	return b.callJSON(ctx, "sendMessage", payload)
}

// SendPhoto sends one image with the post text as caption. Remote URLs are
// passed by reference and fetched by Telegram; data URIs are decoded and
// uploaded as multipart form data with the MIME type from the URI header.
func (b *Bot) SendPhoto(ctx context.Context, chatID, photo, caption string) (*Result, error) {
	mimeType, data, ok := parseDataURI(photo)
	if !ok {
		payload := map[string]interface{}{
			"chat_id":    chatID,
			"photo":      photo,
			"caption":    caption,
			"parse_mode": parseModeHTML,
		}
		return b.callJSON(ctx, "sendPhoto", payload)
	}

	fields := map[string]string{
		"chat_id":    chatID,
		"caption":    caption,
		"parse_mode": parseModeHTML,
	}
	files := []uploadFile{{field: "photo", name: "photo." + extensionFor(mimeType), mimeType: mimeType, data: data}}
	return b.callMultipart(ctx, "sendPhoto", fields, files)
}

type mediaItem struct {
	Type      string `json:"type"`
	Media     string `json:"media"`
	Caption   string `json:"caption,omitempty"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// SendMediaGroup sends 2..10 images as one visual unit. Only the first item
// carries the caption. Inline-encoded images become attach://fileN multipart
// parts so they are not second-class in groups.
func (b *Bot) SendMediaGroup(ctx context.Context, chatID, caption string, images []string) (*Result, error) {
	media := make([]mediaItem, 0, len(images))
	var files []uploadFile

	for i, img := range images {
		item := mediaItem{Type: "photo", Media: img}
		if mimeType, data, ok := parseDataURI(img); ok {
			field := fmt.Sprintf("file%d", i)
			item.Media = "attach://" + field
			files = append(files, uploadFile{
				field:    field,
				name:     field + "." + extensionFor(mimeType),
				mimeType: mimeType,
				data:     data,
			})
		}
		if i == 0 && caption != "" {
			item.Caption = caption
			item.ParseMode = parseModeHTML
		}
		media = append(media, item)
	}

	if len(files) == 0 {
		payload := map[string]interface{}{
			"chat_id": chatID,
			"media":   media,
		}
		return b.callJSON(ctx, "sendMediaGroup", payload)
	}

	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return nil, fmt.Errorf("failed to encode media group: %w", err)
	}
	fields := map[string]string{
		"chat_id": chatID,
		"media":   string(mediaJSON),
	}
	return b.callMultipart(ctx, "sendMediaGroup", fields, files)
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func (b *Bot) callJSON(ctx context.Context, method string, payload interface{}) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return b.do(req, method)
}

type uploadFile struct {
	field    string
	name     string
	mimeType string
	data     []byte
}

func (b *Bot) callMultipart(ctx context.Context, method string, fields map[string]string, files []uploadFile) (*Result, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("failed to write %s field: %w", key, err)
		}
	}

	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.name))
		header.Set("Content-Type", file.mimeType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("failed to create upload part: %w", err)
		}
		if _, err := part.Write(file.data); err != nil {
			return nil, fmt.Errorf("failed to write upload part: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/"+method, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return b.do(req, method)
}

func (b *Bot) do(req *http.Request, method string) (*Result, error) {
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return nil, fmt.Errorf("unexpected %s response (status %s): %w", method, resp.Status, err)
	}

	if !apiResp.OK {
		return nil, &APIError{Description: apiResp.Description}
	}

	return &Result{MessageIDs: extractMessageIDs(apiResp.Result)}, nil
}

// extractMessageIDs handles both envelope shapes: a single message object
// (sendMessage, sendPhoto) and an array of messages (sendMediaGroup).
func extractMessageIDs(raw json.RawMessage) []int64 {
	type message struct {
		MessageID int64 `json:"message_id"`
	}

	var single message
	if err := json.Unmarshal(raw, &single); err == nil && single.MessageID != 0 {
		return []int64{single.MessageID}
	}

	var many []message
	if err := json.Unmarshal(raw, &many); err == nil {
		ids := make([]int64, 0, len(many))
		for _, m := range many {
			ids = append(ids, m.MessageID)
		}
		return ids
	}

	return nil
}

// parseDataURI recognizes data:<mime>;base64,<payload> references and
// decodes the payload. Anything else is treated as a remote URL.
func parseDataURI(s string) (mimeType string, data []byte, ok bool) {
	if !strings.HasPrefix(s, "data:") {
		return "", nil, false
	}

	sep := strings.Index(s, ";base64,")
	if sep < 0 {
		return "", nil, false
	}

	mimeType = s[len("data:"):sep]
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	decoded, err := base64.StdEncoding.DecodeString(s[sep+len(";base64,"):])
	if err != nil {
		return "", nil, false
	}
	return mimeType, decoded, true
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}
