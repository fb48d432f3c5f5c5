package tests

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"throttle_platform/verification/advisory"
	"throttle_platform/verification/chat"
	"throttle_platform/verification/dialog"
	"throttle_platform/verification/schema"
	"throttle_platform/verification/services"
)

func TestSubmitCreatesOpenApplication(t *testing.T) {
	env := setupTestEnv(t)
	env.configureGuild(t, false)

	c := env.newClient()

	res, err := c.submit(env.chat, submitParams("user-1", "Civic"), true, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != schema.StatusOpen {
		t.Fatalf("expected open application, got status %v", res.Status)
	}

	reviews := env.chat.MessagesIn(testReviewChannel)
	if len(reviews) != 1 {
		t.Fatalf("expected 1 review message, got %d", len(reviews))
	}
	if len(reviews[0].Msg.Buttons) != 4 {
		t.Fatalf("expected 4 review controls, got %d", len(reviews[0].Msg.Buttons))
	}

	apps, err := c.listApplications(testGuild, schema.StatusOpen)
	if err != nil {
		t.Fatal(err)
	}
	if len(apps) != 1 || apps[0].VehicleName != "Civic" || apps[0].UserId != "user-1" {
		t.Fatalf("unexpected application listing: %v", apps)
	}
	if apps[0].Decision != nil {
		t.Fatal("open application must not carry a decision")
	}

	// The ETA reply lands in the submission channel after the two prompts.
	submitMsgs := env.chat.MessagesIn(testSubmitChannel)
	if len(submitMsgs) != 3 {
		t.Fatalf("expected 2 consent prompts and 1 confirmation, got %d messages", len(submitMsgs))
	}
	if !strings.Contains(submitMsgs[2].Msg.Body, "24-48 hours") {
		t.Fatalf("expected default turnaround estimate, got %v", submitMsgs[2].Msg.Body)
	}
}

func TestSubmitRejectsDuplicateOpenApplication(t *testing.T) {
	env := setupTestEnv(t)
	env.configureGuild(t, false)

	c := env.newClient()

	if _, err := c.submit(env.chat, submitParams("user-1", "Civic"), true, true); err != nil {
		t.Fatal(err)
	}

	params := submitParams("user-1", "cIvIc")
	code, body, err := c.post("/submissions").Json(params).DoRaw()
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate open application, got %d: %v", code, body)
	}

	apps, err := c.listApplications(testGuild, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(apps) != 1 {
		t.Fatalf("duplicate submission must not create a row, found %d", len(apps))
	}
}

func TestSubmitRejectsBannedUser(t *testing.T) {
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
		t.Fatalf("expected 403 for banned user, got %d", code)
	}
}

func TestSubmitValidation(t *testing.T) {
	env := setupTestEnv(t)
	env.configureGuild(t, false)

	c := env.newClient()

	badName := submitParams("user-1", "X")
	badType := submitParams("user-1", "Civic")
	badType.Attachment.ContentType = "application/pdf"
	badSize := submitParams("user-1", "Civic")
	badSize.Attachment.Size = 26 * 1024 * 1024

	for name, params := range map[string]services.SubmitRequest{
		"short name": badName, "bad content type": badType, "oversized": badSize,
	} {
		code, _, err := c.post("/submissions").Json(params).DoRaw()
		if err != nil {
			t.Fatal(err)
		}
		if code != http.StatusUnprocessableEntity {
			t.Fatalf("%v: expected 422, got %d", name, code)
		}
	}

	if len(env.chat.MessagesIn(testReviewChannel)) != 0 {
		t.Fatal("rejected submissions must not post review messages")
	}
}

func TestSubmitRejectsUnconfiguredGuild(t *testing.T) {
	env := setupTestEnv(t)

	c := env.newClient()

	code, _, err := c.post("/submissions").Json(submitParams("user-1", "Civic")).DoRaw()
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412 for unconfigured guild, got %d", code)
	}
}

func TestSubmitWithoutGuideChannel(t *testing.T) {
	env := setupTestEnv(t)

	c := env.newClient()
	err := c.setGuildConfig(testGuild, map[string]interface{}{
		"review_channel_id": testReviewChannel,
		"log_channel_id":    testLogChannel,
		"verified_role_id":  testVerifiedRole,
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := c.submit(env.chat, submitParams("user-1", "Civic"), true, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != schema.StatusOpen {
		t.Fatalf("expected open application, got %v", res.Status)
	}

	prompts := env.chat.MessagesIn(testSubmitChannel)
	if len(prompts) == 0 {
		t.Fatal("no guide prompt posted")
	}
	if strings.Contains(prompts[0].Msg.Body, "<#") {
		t.Fatalf("guide prompt must not mention a channel when none is configured, got %v", prompts[0].Msg.Body)
	}
}

func TestSubmitAnswersOnlyFreshPrompts(t *testing.T) {
	env := setupTestEnv(t)
	env.configureGuild(t, false)

	c := env.newClient()

	// A leftover prompt from an earlier, already-resolved dialog must not
	// consume the responder's answers; the prompts posted by the submission
	// under test must still be answered.
	stale := chat.Message{
		Body:    "leftover prompt",
		Buttons: []chat.Button{{CustomId: dialog.AffirmControl, Label: "Yes"}},
	}
	if _, err := env.chat.PostMessage(context.Background(), testSubmitChannel, stale); err != nil {
		t.Fatal(err)
	}

	res, err := c.submit(env.chat, submitParams("user-1", "Civic"), true, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != schema.StatusOpen {
		t.Fatalf("expected open application, got %v", res.Status)
	}
}

func TestSubmitAbortsOnDecline(t *testing.T) {
	env := setupTestEnv(t)
	env.configureGuild(t, false)

	c := env.newClient()

	res, err := c.submit(env.chat, submitParams("user-1", "Civic"), false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "aborted" || !strings.Contains(res.Detail, "declined") {
		t.Fatalf("expected declined abort, got %v", res)
	}

	if len(env.chat.MessagesIn(testReviewChannel)) != 0 {
		t.Fatal("declined flow must not post for review")
	}

	apps, err := c.listApplications(testGuild, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(apps) != 0 {
		t.Fatal("declined flow must not create an application")
	}
}

func TestSubmitAbortsOnTimeout(t *testing.T) {
	env := setupTestEnv(t)
	env.configureGuild(t, false)

	c := env.newClient()

	// No consent responder: the first prompt times out.
	var res services.SubmitResponse
	if err := c.post("/submissions").Json(submitParams("user-1", "Civic")).Do(&res); err != nil {
		t.Fatal(err)
	}
	if res.Status != "aborted" || !strings.Contains(res.Detail, "timed out") {
		t.Fatalf("expected timeout abort, got %v", res)
	}
}

func TestSubmitIgnoresOtherUsersConsent(t *testing.T) {
	env := setupTestEnv(t)
	env.configureGuild(t, false)

	c := env.newClient()

	// An interloper affirms both prompts; the flow must still time out
	// because the original requester never responds.
	done := c.respondToConsent(env.chat, "interloper", true, true)

	var res services.SubmitResponse
	if err := c.post("/submissions").Json(submitParams("user-1", "Civic")).Do(&res); err != nil {
		t.Fatal(err)
	}
	<-done

	if res.Status != "aborted" || !strings.Contains(res.Detail, "timed out") {
		t.Fatalf("expected timeout abort when only other users respond, got %v", res)
	}
}

func TestAutoApproval(t *testing.T) {
	env := setupTestEnv(t)
	env.configureGuild(t, true)
	env.advisor.SetVerdict(advisory.Verdict{RequirementsMet: true, VehicleMatch: true, Confidence: 97})

	c := env.newClient()

	res, err := c.submit(env.chat, submitParams("user-1", "Civic"), true, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != schema.StatusAutoApproved {
		t.Fatalf("expected auto-approval, got %v", res.Status)
	}

	entries, err := c.listCatalog(testGuild)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].VehicleName != "Civic" || entries[0].OwnerId != "user-1" {
		t.Fatalf("expected catalog entry for auto-approval, got %v", entries)
	}

	if !env.chat.HasRole(testGuild, "user-1", testVerifiedRole) {
		t.Fatal("auto-approval must grant the verified role")
	}

	reviews := env.chat.MessagesIn(testReviewChannel)
	if len(reviews) != 1 || len(reviews[0].Msg.Buttons) != 1 {
		t.Fatalf("expected auto-approval notice with a single override control, got %v", reviews)
	}
}

func TestAutoDenial(t *testing.T) {
	env := setupTestEnv(t)
	env.configureGuild(t, true)
	env.advisor.SetVerdict(advisory.Verdict{RequirementsMet: false, VehicleMatch: false, Confidence: 95, Issues: []string{"no vehicle visible"}})

	c := env.newClient()

	res, err := c.submit(env.chat, submitParams("user-1", "Civic"), true, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != schema.StatusAutoDenied {
		t.Fatalf("expected auto-denial, got %v", res.Status)
	}

	entries, err := c.listCatalog(testGuild)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatal("auto-denial must not create a catalog entry")
	}

	directs := env.chat.DirectsTo("user-1")
	if len(directs) != 1 || !strings.Contains(directs[0].Body, "no vehicle visible") {
		t.Fatalf("expected auto-denial DM with advisor issues, got %v", directs)
	}
}

func TestAdvisorFailureFallsBackToManualReview(t *testing.T) {
	env := setupTestEnv(t)
	env.configureGuild(t, true)
	env.advisor.Fail()

	c := env.newClient()

	res, err := c.submit(env.chat, submitParams("user-1", "Civic"), true, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != schema.StatusOpen {
		t.Fatalf("advisor failure must fall back to manual review, got %v", res.Status)
	}
	if env.advisor.Calls() != 1 {
		t.Fatalf("expected a single advisory call, got %d", env.advisor.Calls())
	}
}

func TestLowConfidenceFallsBackToManualReview(t *testing.T) {
	env := setupTestEnv(t)
	env.configureGuild(t, true)
	env.advisor.SetVerdict(advisory.Verdict{RequirementsMet: true, VehicleMatch: true, Confidence: 60})

	c := env.newClient()

	res, err := c.submit(env.chat, submitParams("user-1", "Civic"), true, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != schema.StatusOpen {
		t.Fatalf("low confidence must fall back to manual review, got %v", res.Status)
	}
}

func TestSubmitRequiresGatewayAuth(t *testing.T) {
	env := setupTestEnv(t)
	env.configureGuild(t, false)

	c := client{api: env.api}

	code, _, err := c.post("/submissions").Json(submitParams("user-1", "Civic")).DoRaw()
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without gateway token, got %d", code)
	}
}
