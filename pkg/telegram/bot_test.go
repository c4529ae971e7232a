package telegram

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedCall struct {
	path string
	json map[string]interface{}
	form map[string]string
	file []byte
}

// newFakeAPI поднимает фейковый Bot API сервер и записывает вызовы
func newFakeAPI(t *testing.T, response string) (*Bot, *[]capturedCall) {
	t.Helper()

	var calls []capturedCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := capturedCall{path: r.URL.Path}

		contentType := r.Header.Get("Content-Type")
		if contentType == "application/json" {
			body := map[string]interface{}{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			call.json = body
		} else {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			call.form = map[string]string{}
			for key, values := range r.MultipartForm.Value {
				call.form[key] = values[0]
			}
			for _, headers := range r.MultipartForm.File {
				f, err := headers[0].Open()
				require.NoError(t, err)
				buf, err := io.ReadAll(f)
				require.NoError(t, err)
				call.file = buf
				f.Close()
			}
		}

		calls = append(calls, call)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	return NewBotWithHost("TESTTOKEN", srv.URL), &calls
}

func TestDeliverBranchSelection(t *testing.T) {
	tests := []struct {
		name         string
		images       []string
		expectedPath string
	}{
		{
			name:         "no images sends plain message",
			images:       nil,
			expectedPath: "/botTESTTOKEN/sendMessage",
		},
		{
			name:         "one image sends photo",
			images:       []string{"https://x/1.png"},
			expectedPath: "/botTESTTOKEN/sendPhoto",
		},
		{
			name:         "two images send media group",
			images:       []string{"https://x/1.png", "https://x/2.png"},
			expectedPath: "/botTESTTOKEN/sendMediaGroup",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot, calls := newFakeAPI(t, `{"ok":true,"result":{"message_id":42}}`)

			result, err := bot.Deliver(context.Background(), "@mychannel", "Hello", tt.images)
			require.NoError(t, err)
			assert.Equal(t, int64(42), result.FirstMessageID())

			require.Len(t, *calls, 1)
			assert.Equal(t, tt.expectedPath, (*calls)[0].path)
		})
	}
}

func TestSendMessagePayload(t *testing.T) {
	bot, calls := newFakeAPI(t, `{"ok":true,"result":{"message_id":7}}`)

	_, err := bot.SendMessage(context.Background(), "@mychannel", "Hello <b>world</b>")
	require.NoError(t, err)

	payload := (*calls)[0].json
	assert.Equal(t, "@mychannel", payload["chat_id"])
	assert.Equal(t, "Hello <b>world</b>", payload["text"])
	assert.Equal(t, "HTML", payload["parse_mode"])
}

func TestSendPhotoRemoteURL(t *testing.T) {
	bot, calls := newFakeAPI(t, `{"ok":true,"result":{"message_id":7}}`)

	_, err := bot.SendPhoto(context.Background(), "-1001234", "https://x/1.png", "caption")
	require.NoError(t, err)

	payload := (*calls)[0].json
	assert.Equal(t, "https://x/1.png", payload["photo"])
	assert.Equal(t, "caption", payload["caption"])
}

func TestSendPhotoDataURI(t *testing.T) {
	bot, calls := newFakeAPI(t, `{"ok":true,"result":{"message_id":7}}`)

	raw := []byte{0x89, 0x50, 0x4e, 0x47}
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	_, err := bot.SendPhoto(context.Background(), "@mychannel", uri, "caption")
	require.NoError(t, err)

	call := (*calls)[0]
	assert.Equal(t, "@mychannel", call.form["chat_id"])
	assert.Equal(t, "caption", call.form["caption"])
	assert.Equal(t, raw, call.file)
}

func TestSendMediaGroupCaptionOnFirstItemOnly(t *testing.T) {
	bot, calls := newFakeAPI(t, `{"ok":true,"result":[{"message_id":1},{"message_id":2}]}`)

	result, err := bot.Deliver(context.Background(), "@mychannel", "Hello",
		[]string{"https://x/1.png", "https://x/2.png", "https://x/3.png"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, result.MessageIDs)

	media := (*calls)[0].json["media"].([]interface{})
	require.Len(t, media, 3)

	first := media[0].(map[string]interface{})
	assert.Equal(t, "photo", first["type"])
	assert.Equal(t, "https://x/1.png", first["media"])
	assert.Equal(t, "Hello", first["caption"])

	for i := 1; i < 3; i++ {
		item := media[i].(map[string]interface{})
		_, hasCaption := item["caption"]
		assert.False(t, hasCaption, "item %d must not carry a caption", i)
	}
}

func TestSendMediaGroupWithDataURI(t *testing.T) {
	bot, calls := newFakeAPI(t, `{"ok":true,"result":[{"message_id":1},{"message_id":2}]}`)

	raw := []byte{1, 2, 3}
	uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw)

	_, err := bot.SendMediaGroup(context.Background(), "@mychannel", "cap",
		[]string{"https://x/1.png", uri})
	require.NoError(t, err)

	call := (*calls)[0]
	assert.Equal(t, raw, call.file)

	var media []mediaItem
	require.NoError(t, json.Unmarshal([]byte(call.form["media"]), &media))
	assert.Equal(t, "https://x/1.png", media[0].Media)
	assert.Equal(t, "attach://file1", media[1].Media)
}

func TestAPIErrorDescription(t *testing.T) {
	bot, _ := newFakeAPI(t, `{"ok":false,"description":"chat not found"}`)

	_, err := bot.SendMessage(context.Background(), "@nope", "Hello")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "chat not found", apiErr.Description)
}

func TestParseDataURI(t *testing.T) {
	mimeType, data, ok := parseDataURI("data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("x")))
	require.True(t, ok)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, []byte("x"), data)

	_, _, ok = parseDataURI("https://x/1.png")
	assert.False(t, ok)

	_, _, ok = parseDataURI("data:image/png;base64,???")
	assert.False(t, ok)
}
