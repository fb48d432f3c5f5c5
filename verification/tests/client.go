package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"throttle_platform/verification/chat"
	"throttle_platform/verification/dialog"
	"throttle_platform/verification/services"
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	token    string
	json     interface{}
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{api: api, method: method, endpoint: endpoint}
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	r.token = token
	return r
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

// DoRaw runs the request and returns the response status and body.
func (r *httpTestRequest) DoRaw() (int, string, error) {
	var body io.Reader
	if r.json != nil {
		data := new(bytes.Buffer)
		if err := json.NewEncoder(data).Encode(r.json); err != nil {
			return 0, "", fmt.Errorf("error encoding request body: %w", err)
		}
		body = data
	}

	req := httptest.NewRequest(r.method, r.endpoint, body)
	if r.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %v", r.token))
	}

	rec := httptest.NewRecorder()
	r.api.ServeHTTP(rec, req)

	return rec.Code, rec.Body.String(), nil
}

func (r *httpTestRequest) Do(dest interface{}) error {
	code, body, err := r.DoRaw()
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("request to %v returned status %d: %v", r.endpoint, code, body)
	}
	if dest != nil {
		if err := json.Unmarshal([]byte(body), dest); err != nil {
			return fmt.Errorf("error parsing response from %v: %w", r.endpoint, err)
		}
	}
	return nil
}

type client struct {
	api   http.Handler
	token string
}

func (c *client) post(endpoint string) *httpTestRequest {
	return newHttpTestRequest(c.api, http.MethodPost, endpoint).Auth(c.token)
}

func (c *client) get(endpoint string) *httpTestRequest {
	return newHttpTestRequest(c.api, http.MethodGet, endpoint).Auth(c.token)
}

func (c *client) put(endpoint string) *httpTestRequest {
	return newHttpTestRequest(c.api, http.MethodPut, endpoint).Auth(c.token)
}

func (c *client) delete(endpoint string) *httpTestRequest {
	return newHttpTestRequest(c.api, http.MethodDelete, endpoint).Auth(c.token)
}

func (c *client) setGuildConfig(guildId string, cfg map[string]interface{}) error {
	return c.put(fmt.Sprintf("/guilds/%v/config", guildId)).Json(cfg).Do(nil)
}

func (c *client) banUser(guildId, userId string) error {
	return c.post(fmt.Sprintf("/guilds/%v/users/%v/ban", guildId, userId)).Do(nil)
}

func (c *client) interact(ev chat.InteractionEvent) (services.InteractionResponse, int, error) {
	code, body, err := c.post("/interactions").Json(ev).DoRaw()
	if err != nil {
		return services.InteractionResponse{}, 0, err
	}
	if code != http.StatusOK {
		return services.InteractionResponse{}, code, fmt.Errorf("interaction returned status %d: %v", code, body)
	}
	var res services.InteractionResponse
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		return services.InteractionResponse{}, code, err
	}
	return res, code, nil
}

func (c *client) memberLeft(guildId, userId string) (services.MemberLeftResponse, error) {
	var res services.MemberLeftResponse
	err := c.post("/members/leave").Json(services.MemberLeftRequest{GuildId: guildId, UserId: userId}).Do(&res)
	return res, err
}

func (c *client) listApplications(guildId, status string) ([]services.ApplicationInfo, error) {
	endpoint := fmt.Sprintf("/applications?guild_id=%v", guildId)
	if status != "" {
		endpoint += "&status=" + status
	}
	var apps []services.ApplicationInfo
	err := c.get(endpoint).Do(&apps)
	return apps, err
}

func (c *client) listCatalog(guildId string) ([]services.CatalogEntryInfo, error) {
	var entries []services.CatalogEntryInfo
	err := c.get(fmt.Sprintf("/catalog?guild_id=%v", guildId)).Do(&entries)
	return entries, err
}

func submitParams(userId, vehicleName string) services.SubmitRequest {
	return services.SubmitRequest{
		GuildId:     testGuild,
		UserId:      userId,
		ChannelId:   testSubmitChannel,
		VehicleName: vehicleName,
		Attachment: services.Attachment{
			Filename:    "car.png",
			ContentType: "image/png",
			Size:        1024 * 1024,
			Url:         "https://cdn.example/car.png",
			ProxyUrl:    "https://proxy.example/car.png",
		},
	}
}

// respondToConsent watches the chat stub for consent prompts addressed to
// userId and answers them in order, mimicking the user pressing buttons while
// the submission handler is blocked on the dialog manager.
func (c *client) respondToConsent(stub *ChatStub, userId string, answers ...bool) chan struct{} {
	// Prompts from earlier submissions in the same test are already resolved
	// and must not consume answers. The snapshot is taken before the responder
	// starts: by the time the goroutine is scheduled the submission under test
	// may already have posted its first prompt, and that one must be answered.
	seen := make(map[string]bool)
	for _, msg := range stub.MessagesIn(testSubmitChannel) {
		seen[msg.MessageId] = true
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		answered := 0
		deadline := time.Now().Add(10 * time.Second)

		for answered < len(answers) && time.Now().Before(deadline) {
			for _, msg := range stub.MessagesIn(testSubmitChannel) {
				if seen[msg.MessageId] || !isConsentPrompt(msg.Msg) {
					continue
				}
				seen[msg.MessageId] = true

				control := dialog.DeclineControl
				if answers[answered] {
					control = dialog.AffirmControl
				}
				answered++

				_, _, err := c.interact(chat.InteractionEvent{
					GuildId:   testGuild,
					ChannelId: msg.ChannelId,
					MessageId: msg.MessageId,
					UserId:    userId,
					CustomId:  control,
				})
				if err != nil {
					return
				}
				if answered == len(answers) {
					return
				}
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	return done
}

func isConsentPrompt(msg chat.Message) bool {
	for _, button := range msg.Buttons {
		if button.CustomId == dialog.AffirmControl {
			return true
		}
	}
	return false
}

// submit runs the full submission flow, answering the consent prompts with
// the given answers.
func (c *client) submit(stub *ChatStub, params services.SubmitRequest, answers ...bool) (services.SubmitResponse, error) {
	done := c.respondToConsent(stub, params.UserId, answers...)

	var res services.SubmitResponse
	err := c.post("/submissions").Json(params).Do(&res)

	<-done
	return res, err
}
