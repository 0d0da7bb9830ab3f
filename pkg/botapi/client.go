package botapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/ratelimit"

	"github.com/tradeguard-network/tradeguard-daemon/pkg/util"
)

// ErrApiRejected is returned when the bot platform answers with ok=false.
var ErrApiRejected = errors.New("bot api rejected the request")

// DefaultApiURL is the hosted bot platform endpoint.
const DefaultApiURL = "https://api.telegram.org"

// the platform throttles bots at roughly 30 messages per second overall.
const sendsPerSecond = 25

// Client is a minimal long-poll client of the bot HTTP API: it fetches
// updates and sends text messages and documents, nothing else. Outgoing
// calls share a rate limiter to stay below the platform send quota.
type Client struct {
	apiURL  string
	token   string
	limiter ratelimit.Limiter
}

// NewClient returns a Client for the given bot token. An empty apiURL
// falls back to the hosted platform endpoint.
func NewClient(apiURL, token string) (*Client, error) {
	if len(token) <= 0 {
		return nil, errors.New("bot token must not be empty")
	}
	if len(apiURL) <= 0 {
		apiURL = DefaultApiURL
	}

	return &Client{
		apiURL:  apiURL,
		token:   token,
		limiter: ratelimit.New(sendsPerSecond),
	}, nil
}

// GetUpdates long-polls for incoming updates starting from the given
// offset. The timeout is expressed in seconds and must stay below the
// underlying HTTP client timeout.
func (c *Client) GetUpdates(offset int64, timeout int) ([]Update, error) {
	url := fmt.Sprintf(
		"%s?offset=%d&timeout=%d", c.methodURL("getUpdates"), offset, timeout,
	)

	result, err := c.call("GET", url, "")
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage sends a plain text message to the given chat.
func (c *Client) SendMessage(chatId int64, text string) error {
	c.limiter.Take()

	payload, _ := json.Marshal(map[string]interface{}{
		"chat_id": chatId,
		"text":    text,
	})
	_, err := c.call("POST", c.methodURL("sendMessage"), string(payload))
	return err
}

// SendDocument re-sends an already uploaded file, identified by its file
// id, to the given chat.
func (c *Client) SendDocument(chatId int64, fileId, caption string) error {
	c.limiter.Take()

	payload, _ := json.Marshal(map[string]interface{}{
		"chat_id":  chatId,
		"document": fileId,
		"caption":  caption,
	})
	_, err := c.call("POST", c.methodURL("sendDocument"), string(payload))
	return err
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.apiURL, c.token, method)
}

func (c *Client) call(verb, url, body string) (json.RawMessage, error) {
	status, resBody, err := util.NewHTTPRequest(verb, url, body, nil)
	if err != nil {
		return nil, err
	}

	var res apiResponse
	if err := json.Unmarshal([]byte(resBody), &res); err != nil {
		return nil, fmt.Errorf("bot api: unexpected response (http %d)", status)
	}
	if !res.Ok {
		if len(res.Description) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrApiRejected, res.Description)
		}
		return nil, ErrApiRejected
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("bot api: http %d", status)
	}
	return res.Result, nil
}
