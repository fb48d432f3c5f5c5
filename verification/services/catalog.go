package services

import (
	"log/slog"
	"net/http"

	"throttle_platform/utils"
	"throttle_platform/verification/schema"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// CatalogService exposes lookups over verified vehicles. Entry creation and
// deletion belong to the decision state machine, not to this surface.
type CatalogService struct {
	db *gorm.DB
}

func (s *CatalogService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.List)

	return r
}

type CatalogEntryInfo struct {
	Id                string   `json:"id"`
	GuildId           string   `json:"guild_id"`
	OwnerId           string   `json:"owner_id"`
	VehicleName       string   `json:"vehicle_name"`
	Description       *string  `json:"description"`
	VerificationImage string   `json:"verification_image"`
	EmbedColor        string   `json:"embed_color"`
	Images            []string `json:"images"`
}

func (s *CatalogService) List(w http.ResponseWriter, r *http.Request) {
	guildId := r.URL.Query().Get("guild_id")
	if guildId == "" {
		http.Error(w, "missing guild_id query parameter", http.StatusBadRequest)
		return
	}

	query := s.db.Preload("Images").Where("guild_id = ?", guildId)
	if ownerId := r.URL.Query().Get("owner_id"); ownerId != "" {
		query = query.Where("owner_id = ?", ownerId)
	}

	var entries []schema.CatalogEntry
	result := query.Order("created_at").Find(&entries)
	if result.Error != nil {
		slog.Error("sql error listing catalog entries", "guild_id", guildId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]CatalogEntryInfo, 0, len(entries))
	for _, entry := range entries {
		images := make([]string, 0, len(entry.Images))
		for _, img := range entry.Images {
			images = append(images, img.Url)
		}
		infos = append(infos, CatalogEntryInfo{
			Id:                entry.Id.String(),
			GuildId:           entry.GuildId,
			OwnerId:           entry.OwnerId,
			VehicleName:       entry.VehicleName,
			Description:       entry.Description,
			VerificationImage: entry.VerificationImage,
			EmbedColor:        entry.EmbedColor,
			Images:            images,
		})
	}

	utils.WriteJsonResponse(w, infos)
}
