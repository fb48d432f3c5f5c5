package tests

import (
	"net/http"
	"testing"

	"throttle_platform/verification/chat"
	"throttle_platform/verification/schema"
)

func TestGuildConfigRoundTrip(t *testing.T) {
	env := setupTestEnv(t)

	c := env.newClient()

	code, _, err := c.get("/guilds/" + testGuild + "/config").DoRaw()
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 before configuration, got %d", code)
	}

	env.configureGuild(t, true)

	var cfg schema.GuildConfig
	if err := c.get("/guilds/" + testGuild + "/config").Do(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.ReviewChannelId != testReviewChannel || cfg.VerifiedRoleId != testVerifiedRole {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !cfg.AutoDecisionEnabled {
		t.Fatal("expected auto decision to be enabled")
	}
}

func TestGuildConfigRequiresReviewFields(t *testing.T) {
	env := setupTestEnv(t)

	c := env.newClient()

	code, _, err := c.put("/guilds/"+testGuild+"/config").Json(map[string]interface{}{
		"guide_channel_id": testGuideChannel,
	}).DoRaw()
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for incomplete config, got %d", code)
	}
}

func TestManualBanAndUnban(t *testing.T) {
	env := setupTestEnv(t)
	env.configureGuild(t, false)

	c := env.newClient()

	if err := c.banUser(testGuild, "user-1"); err != nil {
		t.Fatal(err)
	}

	code, _, err := c.post("/submissions").Json(submitParams("user-1", "Civic")).DoRaw()
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusForbidden {
		t.Fatalf("expected 403 while banned, got %d", code)
	}

	code, _, err = c.delete("/guilds/" + testGuild + "/users/user-1/ban").DoRaw()
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusOK {
		t.Fatalf("expected unban to succeed, got %d", code)
	}

	if _, err := c.submit(env.chat, submitParams("user-1", "Civic"), true, true); err != nil {
		t.Fatal(err)
	}
}

func TestUnknownInteractionIsUnhandled(t *testing.T) {
	env := setupTestEnv(t)
	env.configureGuild(t, false)

	c := env.newClient()

	res, code, err := c.interact(chat.InteractionEvent{
		GuildId:   testGuild,
		ChannelId: testSubmitChannel,
		MessageId: "msg-1",
		UserId:    "user-1",
		CustomId:  "giveaway:enter",
	})
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusOK || res.Handled {
		t.Fatalf("expected unhandled interaction, got code %d, handled %v", code, res.Handled)
	}
}
