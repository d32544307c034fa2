// Package deeplink encodes and decodes the bot's start payloads.
//
// File payloads are URL-safe base64 (padding stripped) over
// "get-<id>" or "get-<first>-<last>", where every id is the DB channel
// message id multiplied by the absolute channel id. Search handoff
// payloads are plain "search_<urlencoded query>".
package deeplink

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// MaxPayloadLen is the Telegram limit for a /start parameter.
const MaxPayloadLen = 64

const filePrefix = "get-"
const searchPrefix = "search_"

type payloadTooSmallError int

func (e payloadTooSmallError) Error() string {
	return fmt.Sprintf("payload is too small: %d", int(e))
}

type payloadTooLargeError int

func (e payloadTooLargeError) Error() string {
	return fmt.Sprintf("payload is too large: %d", int(e))
}

var ErrMalformed = fmt.Errorf("malformed deep link payload")

// Codec binds payloads to one DB channel. Ids multiplied by a different
// channel id fail to decode.
type Codec struct {
	channelID int64
}

func NewCodec(channelID int64) *Codec {
	return &Codec{channelID: channelID}
}

func (c *Codec) abs() int64 {
	if c.channelID < 0 {
		return -c.channelID
	}
	return c.channelID
}

// EncodeSingle builds the payload for one stored message.
func (c *Codec) EncodeSingle(msgID int) (string, error) {
	return c.encode(fmt.Sprintf("%s%d", filePrefix, int64(msgID)*c.abs()))
}

// EncodeRange builds the payload for the inclusive id range [first, last].
func (c *Codec) EncodeRange(first, last int) (string, error) {
	if last < first {
		first, last = last, first
	}
	return c.encode(fmt.Sprintf("%s%d-%d", filePrefix, int64(first)*c.abs(), int64(last)*c.abs()))
}

func (c *Codec) encode(raw string) (string, error) {
	payload := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(raw))
	if len(payload) > MaxPayloadLen {
		return "", payloadTooLargeError(len(payload))
	}
	return payload, nil
}

// Decode expands a file payload into DB channel message ids, in order.
func (c *Codec) Decode(payload string) ([]int, error) {
	if len(payload) < 4 {
		return nil, payloadTooSmallError(len(payload))
	}
	if len(payload) > MaxPayloadLen {
		return nil, payloadTooLargeError(len(payload))
	}
	raw, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(payload, "="))
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	body, ok := strings.CutPrefix(string(raw), filePrefix)
	if !ok {
		return nil, ErrMalformed
	}
	parts := strings.Split(body, "-")
	switch len(parts) {
	case 1:
		id, err := c.demultiply(parts[0])
		if err != nil {
			return nil, err
		}
		return []int{id}, nil
	case 2:
		first, err := c.demultiply(parts[0])
		if err != nil {
			return nil, err
		}
		last, err := c.demultiply(parts[1])
		if err != nil {
			return nil, err
		}
		if last < first {
			return nil, ErrMalformed
		}
		ids := make([]int, 0, last-first+1)
		for id := first; id <= last; id++ {
			ids = append(ids, id)
		}
		return ids, nil
	default:
		return nil, ErrMalformed
	}
}

func (c *Codec) demultiply(s string) (int, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing payload id [%s]: %w", s, err)
	}
	abs := c.abs()
	if v <= 0 || v%abs != 0 {
		return 0, ErrMalformed
	}
	return int(v / abs), nil
}

// SearchPayload builds the group-to-private search handoff payload.
func SearchPayload(query string) string {
	return searchPrefix + url.QueryEscape(query)
}

// CutSearchPayload returns the query carried by a search payload.
func CutSearchPayload(payload string) (string, bool) {
	escaped, ok := strings.CutPrefix(payload, searchPrefix)
	if !ok {
		return "", false
	}
	query, err := url.QueryUnescape(escaped)
	if err != nil {
		return "", false
	}
	return query, true
}

// BotLink builds t.me/<bot>?start=<payload>.
func BotLink(botUsername, payload string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, payload)
}

// RedirectLink routes the payload through the redirect web service when
// one is configured, falling back to the direct bot link.
func RedirectLink(redirectBase, botUsername, payload string) string {
	if redirectBase == "" {
		return BotLink(botUsername, payload)
	}
	return fmt.Sprintf("%s?start=%s", strings.TrimRight(redirectBase, "/"), payload)
}

// ShareLink wraps a link into Telegram's share dialog URL.
func ShareLink(link string) string {
	return "https://telegram.me/share/url?url=" + url.QueryEscape(link)
}

// ChannelMessageLink builds the t.me/c/<internal id>/<msg> link for a
// private channel message.
func ChannelMessageLink(channelID int64, msgID int) string {
	internal := strconv.FormatInt(channelID, 10)
	internal = strings.TrimPrefix(internal, "-100")
	internal = strings.TrimPrefix(internal, "-")
	return fmt.Sprintf("https://t.me/c/%s/%d", internal, msgID)
}
