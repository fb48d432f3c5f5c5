package tests

import (
	"bytes"
	"testing"
	"time"

	"throttle_platform/verification/auth"
	"throttle_platform/verification/schema"
	"throttle_platform/verification/services"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	platform services.VerificationPlatform
	api      chi.Router
	db       *gorm.DB
	chat     *ChatStub
	advisor  *AdvisorStub
	token    string
}

const (
	testGuild         = "guild-1"
	testReviewChannel = "review-channel"
	testGuideChannel  = "guide-channel"
	testLogChannel    = "log-channel"
	testVerifiedRole  = "verified-role"
	testSubmitChannel = "submit-channel"
)

func setupTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	// A fresh connection against an in-memory sqlite db is a fresh empty db;
	// pin the pool to one connection so every query sees the same data.
	sqlDb, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDb.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&schema.VerificationApplication{}, &schema.CatalogEntry{}, &schema.CatalogImage{},
		&schema.UserProfile{}, &schema.GuildConfig{},
	)
	if err != nil {
		t.Fatal(err)
	}

	chatStub := newChatStub()
	advisorStub := newAdvisorStub()

	variables := services.DefaultVariables()
	variables.ConsentTimeout = 2 * time.Second

	secret := []byte("290zcv02ai249")

	platform := services.NewVerificationPlatform(
		db, chatStub, advisorStub,
		auth.NewAuditLogger(new(bytes.Buffer)),
		variables,
		secret,
	)

	token, err := platform.GatewayAuth().CreateGatewayJwt("test-gateway", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	return &testEnv{
		platform: platform,
		api:      platform.Routes(),
		db:       db,
		chat:     chatStub,
		advisor:  advisorStub,
		token:    token,
	}
}

func (env *testEnv) configureGuild(t *testing.T, autoDecision bool) {
	c := env.newClient()
	err := c.setGuildConfig(testGuild, map[string]interface{}{
		"review_channel_id":     testReviewChannel,
		"guide_channel_id":      testGuideChannel,
		"log_channel_id":        testLogChannel,
		"verified_role_id":      testVerifiedRole,
		"auto_decision_enabled": autoDecision,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (env *testEnv) newClient() client {
	return client{api: env.api, token: env.token}
}
