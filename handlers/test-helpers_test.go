package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

// apiCall is one request the stub transport saw on its way out to the
// Bot API.
type apiCall struct {
	Method string
	Params map[string]string
}

// stubTransport answers every Bot API request with a canned success, so
// handlers can run against a real telebot instance without a network.
type stubTransport struct {
	mu    sync.Mutex
	calls []apiCall
}

func (s *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	call := apiCall{Params: map[string]string{}}
	if i := strings.LastIndex(req.URL.Path, "/"); i >= 0 {
		call.Method = req.URL.Path[i+1:]
	}
	if req.Body != nil {
		body, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(body, &call.Params)
	}
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()

	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body: io.NopCloser(strings.NewReader(
			`{"ok":true,"result":{"message_id":7,"chat":{"id":1,"type":"private"},"date":1}}`,
		)),
	}, nil
}

func (s *stubTransport) byMethod(method string) []apiCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []apiCall
	for _, call := range s.calls {
		if call.Method == method {
			matched = append(matched, call)
		}
	}
	return matched
}

func newTestBot(t *testing.T) (*tele.Bot, *stubTransport) {
	t.Helper()
	transport := &stubTransport{}
	bot, err := tele.NewBot(tele.Settings{
		Offline: true,
		Client:  &http.Client{Transport: transport},
	})
	require.NoError(t, err)
	bot.Me = &tele.User{ID: 99, Username: "HDCinemaBot"}
	return bot, transport
}

func privateText(userID int64, text string) tele.Update {
	return tele.Update{Message: &tele.Message{
		ID:     10,
		Text:   text,
		Sender: &tele.User{ID: userID, FirstName: "Dana"},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
	}}
}

func groupText(chatID, userID int64, text string) tele.Update {
	return tele.Update{Message: &tele.Message{
		ID:     11,
		Text:   text,
		Sender: &tele.User{ID: userID, FirstName: "Dana"},
		Chat:   &tele.Chat{ID: chatID, Type: tele.ChatSuperGroup},
	}}
}

func privateMedia(userID int64, fill func(*tele.Message)) tele.Update {
	msg := &tele.Message{
		ID:     12,
		Sender: &tele.User{ID: userID, FirstName: "Dana"},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
	}
	fill(msg)
	return tele.Update{Message: msg}
}

func callbackUpdate(userID int64, data string, card *tele.Message) tele.Update {
	return tele.Update{Callback: &tele.Callback{
		ID:      "cb1",
		Sender:  &tele.User{ID: userID, FirstName: "Ops"},
		Message: card,
		Data:    data,
	}}
}
