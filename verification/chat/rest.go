package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// RestClient implements Messenger against the gateway's REST surface. The
// gateway proxies these calls to the chat platform so that this service never
// holds a platform session of its own.
type RestClient struct {
	baseUrl string
	token   string
	client  *http.Client
}

func NewRestClient(baseUrl, token string) *RestClient {
	return &RestClient{
		baseUrl: baseUrl,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type postMessageResponse struct {
	MessageId string `json:"message_id"`
}

func (c *RestClient) makeRequest(ctx context.Context, method, endpoint string, body interface{}, dest interface{}) error {
	fullUrl, err := url.JoinPath(c.baseUrl, endpoint)
	if err != nil {
		return fmt.Errorf("error formatting url for endpoint %v: %w", endpoint, err)
	}

	data := new(bytes.Buffer)
	if body != nil {
		if err := json.NewEncoder(data).Encode(body); err != nil {
			return fmt.Errorf("error encoding request body for endpoint %v: %w", endpoint, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, fullUrl, data)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %v", c.token))

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMessageDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrUnknownMember
	}
	if resp.StatusCode != http.StatusOK {
		content, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: gateway returned status %d: %s", ErrMessageDeliveryFailed, resp.StatusCode, string(content))
	}

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("error parsing response from endpoint %v: %w", endpoint, err)
		}
	}

	return nil
}

func (c *RestClient) PostMessage(ctx context.Context, channelId string, msg Message) (string, error) {
	var res postMessageResponse
	err := c.makeRequest(ctx, http.MethodPost, fmt.Sprintf("/channels/%v/messages", channelId), msg, &res)
	if err != nil {
		return "", err
	}
	return res.MessageId, nil
}

func (c *RestClient) EditMessage(ctx context.Context, channelId, messageId string, msg Message) error {
	return c.makeRequest(ctx, http.MethodPatch, fmt.Sprintf("/channels/%v/messages/%v", channelId, messageId), msg, nil)
}

func (c *RestClient) SendDirect(ctx context.Context, userId string, msg Message) error {
	return c.makeRequest(ctx, http.MethodPost, fmt.Sprintf("/users/%v/messages", userId), msg, nil)
}

func (c *RestClient) AddRole(ctx context.Context, guildId, userId, roleId string) error {
	return c.makeRequest(ctx, http.MethodPut, fmt.Sprintf("/guilds/%v/members/%v/roles/%v", guildId, userId, roleId), nil, nil)
}

func (c *RestClient) RemoveRole(ctx context.Context, guildId, userId, roleId string) error {
	return c.makeRequest(ctx, http.MethodDelete, fmt.Sprintf("/guilds/%v/members/%v/roles/%v", guildId, userId, roleId), nil, nil)
}
