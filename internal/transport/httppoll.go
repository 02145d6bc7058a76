package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTPPollConfig configures the long-polling bot-API client.
type HTTPPollConfig struct {
	BaseURL        string
	BotToken       string
	PollTimeout    time.Duration
	ConnectTimeout time.Duration
	RetryBackoff   time.Duration
	MaxRetries     int
}

// httpPollTransport is a long-polling HTTP implementation of ChatTransport,
// reconnecting with backoff the same way the teacher's MQTT client
// reconnects to a broker — applied here to re-polling getUpdates after a
// transient failure instead of re-dialing a broker.
type httpPollTransport struct {
	cfg    HTTPPollConfig
	client *http.Client
	logger *zap.Logger
	events chan InboundEvent
	offset int64
}

// NewHTTPPollTransport builds a ChatTransport backed by the bot API's
// long-polling getUpdates endpoint.
func NewHTTPPollTransport(cfg HTTPPollConfig, logger *zap.Logger) ChatTransport {
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	return &httpPollTransport{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.PollTimeout + cfg.ConnectTimeout},
		logger: logger,
		events: make(chan InboundEvent, 64),
	}
}

func (t *httpPollTransport) Events() <-chan InboundEvent { return t.events }

// Send posts text to chatID with HTML parse mode. The keyboard argument is
// not sent; messages from this adapter carry no keyboard.
func (t *httpPollTransport) Send(ctx context.Context, chatID int64, text string, keyboard *Keyboard) error {
	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(chatID, 10))
	form.Set("text", text)
	form.Set("parse_mode", "HTML")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendMessage"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("transport: building send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: sending message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transport: send returned status %d", resp.StatusCode)
	}
	return nil
}

// Run polls getUpdates until ctx is canceled, retrying transient failures
// with a backoff of RetryBackoff times the number of consecutive failures,
// and giving up once MaxRetries consecutive failures are reached.
func (t *httpPollTransport) Run(ctx context.Context) error {
	defer close(t.events)

	consecutiveFailures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		updates, err := t.poll(ctx)
		if err != nil {
			consecutiveFailures++
			if t.logger != nil {
				t.logger.Warn("transport: poll failed, backing off",
					zap.Int("attempt", consecutiveFailures), zap.Error(err))
			}
			if consecutiveFailures >= t.cfg.MaxRetries {
				return fmt.Errorf("transport: exceeded max retries: %w", err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(t.cfg.RetryBackoff * time.Duration(consecutiveFailures)):
			}
			continue
		}
		consecutiveFailures = 0

		for _, u := range updates {
			t.offset = u.UpdateID + 1
			if ev := toInboundEvent(u); ev != nil {
				select {
				case t.events <- *ev:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

func (t *httpPollTransport) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.cfg.BaseURL, t.cfg.BotToken, method)
}

type update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *wireMessage   `json:"message"`
	EditedMessage *wireMessage   `json:"edited_message"`
}

type wireMessage struct {
	MessageID int64         `json:"message_id"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Text       string        `json:"text"`
	Location   *wireLocation `json:"location"`
	LivePeriod *int          `json:"live_period"`
}

type wireLocation struct {
	Latitude           float64  `json:"latitude"`
	Longitude          float64  `json:"longitude"`
	HorizontalAccuracy *float64 `json:"horizontal_accuracy"`
	Heading            *float64 `json:"heading"`
	Speed              *float64 `json:"speed"`
}

func (t *httpPollTransport) poll(ctx context.Context) ([]update, error) {
	q := url.Values{}
	q.Set("timeout", strconv.Itoa(int(t.cfg.PollTimeout.Seconds())))
	q.Set("offset", strconv.FormatInt(t.offset, 10))

	reqURL := t.endpoint("getUpdates") + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: building poll request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: polling updates: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transport: poll returned status %d", resp.StatusCode)
	}

	var body struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("transport: decoding poll response: %w", err)
	}
	if !body.OK {
		return nil, fmt.Errorf("transport: poll response not ok")
	}
	return body.Result, nil
}

func toInboundEvent(u update) *InboundEvent {
	msg := u.Message
	isEdit := false
	if msg == nil {
		msg = u.EditedMessage
		isEdit = true
	}
	if msg == nil {
		return nil
	}

	ev := &InboundEvent{
		ChatID:         msg.Chat.ID,
		MessageID:      msg.MessageID,
		IsEdit:         isEdit,
		LivePeriodSecs: msg.LivePeriod,
	}
	if msg.Location != nil {
		ev.Location = &RawLocation{
			Latitude:           msg.Location.Latitude,
			Longitude:          msg.Location.Longitude,
			HorizontalAccuracy: msg.Location.HorizontalAccuracy,
			Heading:            msg.Location.Heading,
			Speed:              msg.Location.Speed,
		}
	}
	if strings.HasPrefix(msg.Text, "/") {
		ev.Command = strings.Fields(msg.Text)[0]
	}
	return ev
}
