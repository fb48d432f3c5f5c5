package services

import (
	"log"
	"net/http"
	"os"

	"throttle_platform/utils"
	"throttle_platform/verification/advisory"
	"throttle_platform/verification/auth"
	"throttle_platform/verification/chat"
	"throttle_platform/verification/dialog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type VerificationPlatform struct {
	submission  SubmissionService
	interaction InteractionService
	membership  MembershipService
	application ApplicationService
	catalog     CatalogService
	guild       GuildService

	gatewayAuth *auth.JwtManager
	db          *gorm.DB
}

func NewVerificationPlatform(
	db *gorm.DB, messenger chat.Messenger, advisor advisory.Advisor, audit auth.AuditLogger, variables Variables, secret []byte,
) VerificationPlatform {
	dialogs := dialog.NewManager(messenger, variables.ConsentTimeout)
	decision := DecisionService{db: db, messenger: messenger, audit: audit}

	return VerificationPlatform{
		submission: SubmissionService{
			db:        db,
			messenger: messenger,
			advisor:   advisor,
			dialogs:   dialogs,
			audit:     audit,
			variables: variables,
		},
		interaction: InteractionService{
			dialogs:  dialogs,
			decision: &decision,
		},
		membership: MembershipService{
			db:        db,
			messenger: messenger,
			audit:     audit,
		},
		application: ApplicationService{db: db},
		catalog:     CatalogService{db: db},
		guild:       GuildService{db: db},
		gatewayAuth: auth.NewJwtManager(secret),
		db:          db,
	}
}

func (p *VerificationPlatform) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Group(func(r chi.Router) {
		r.Use(p.gatewayAuth.Verifier())
		r.Use(p.gatewayAuth.Authenticator())

		r.Mount("/submissions", p.submission.Routes())
		r.Mount("/interactions", p.interaction.Routes())
		r.Mount("/members", p.membership.Routes())
		r.Mount("/applications", p.application.Routes())
		r.Mount("/catalog", p.catalog.Routes())
		r.Mount("/guilds", p.guild.Routes())
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}

func (p *VerificationPlatform) GatewayAuth() *auth.JwtManager {
	return p.gatewayAuth
}
