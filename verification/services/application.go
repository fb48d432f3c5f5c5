package services

import (
	"errors"
	"log/slog"
	"net/http"

	"throttle_platform/utils"
	"throttle_platform/verification/schema"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// ApplicationService exposes read-only staff views over the application
// audit trail. Applications are never mutated through this surface.
type ApplicationService struct {
	db *gorm.DB
}

func (s *ApplicationService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.List)
	r.Get("/{application_id}", s.Get)

	return r
}

type ApplicationInfo struct {
	Id          string  `json:"id"`
	GuildId     string  `json:"guild_id"`
	UserId      string  `json:"user_id"`
	VehicleName string  `json:"vehicle_name"`
	ImageUrl    string  `json:"image_url"`
	Status      string  `json:"status"`
	Decision    *string `json:"decision"`
	DecidedBy   *string `json:"decided_by"`
	SubmittedAt string  `json:"submitted_at"`
	DecidedAt   *string `json:"decided_at"`
}

func applicationInfo(app *schema.VerificationApplication) ApplicationInfo {
	info := ApplicationInfo{
		Id:          app.Id.String(),
		GuildId:     app.GuildId,
		UserId:      app.UserId,
		VehicleName: app.VehicleName,
		ImageUrl:    app.ImageUrl,
		Status:      app.Status,
		Decision:    app.Decision,
		DecidedBy:   app.DecidedBy,
		SubmittedAt: app.SubmittedAt.Format("2006-01-02T15:04:05Z"),
	}
	if app.DecidedAt != nil {
		decidedAt := app.DecidedAt.Format("2006-01-02T15:04:05Z")
		info.DecidedAt = &decidedAt
	}
	return info
}

func (s *ApplicationService) List(w http.ResponseWriter, r *http.Request) {
	guildId := r.URL.Query().Get("guild_id")
	if guildId == "" {
		http.Error(w, "missing guild_id query parameter", http.StatusBadRequest)
		return
	}

	query := s.db.Where("guild_id = ?", guildId)
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if userId := r.URL.Query().Get("user_id"); userId != "" {
		query = query.Where("user_id = ?", userId)
	}

	var apps []schema.VerificationApplication
	result := query.Order("submitted_at DESC").Find(&apps)
	if result.Error != nil {
		slog.Error("sql error listing applications", "guild_id", guildId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]ApplicationInfo, 0, len(apps))
	for i := range apps {
		infos = append(infos, applicationInfo(&apps[i]))
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *ApplicationService) Get(w http.ResponseWriter, r *http.Request) {
	appId, err := utils.URLParamUUID(r, "application_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	app, err := schema.GetApplication(appId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrApplicationNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, applicationInfo(&app))
}
