package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/wadjakorntonsri/linkshort/pkg/logging"
	"github.com/wadjakorntonsri/linkshort/pkg/ports"
)

const exportUserLimit = 10000

type AdminHandler struct {
	service ports.AdminService
	logger  *logging.Logger
}

func NewAdminHandler(service ports.AdminService, logger *logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &AdminHandler{service: service, logger: logger}
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "", d)
}

func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.GlobalAnalytics(r.Context(), queryInt(r, "days"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "", report)
}

func (h *AdminHandler) URLs(w http.ResponseWriter, r *http.Request) {
	page, limit := queryInt(r, "page"), queryInt(r, "limit")
	links, total, err := h.service.ListLinks(r.Context(), page, limit, r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if page < 1 {
		page = 1
	}
	writeJSON(w, http.StatusOK, "", map[string]any{
		"urls":  links,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context(), queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "", users)
}

func (h *AdminHandler) DeleteURL(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteLink(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "URL deleted successfully", nil)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "User deleted successfully", nil)
}

// Export streams links or users as a CSV attachment.
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("type")
	var rows [][]string

	switch kind {
	case "urls":
		links, err := h.service.ExportLinks(r.Context())
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		rows = append(rows, []string{"id", "short_code", "short_url", "original_url", "owner_id", "click_count", "created_at", "last_accessed_at", "active"})
		for _, l := range links {
			owner, lastAccessed := "", ""
			if l.OwnerID != nil {
				owner = strconv.FormatInt(*l.OwnerID, 10)
			}
			if l.LastAccessedAt != nil {
				lastAccessed = l.LastAccessedAt.UTC().Format(time.RFC3339)
			}
			rows = append(rows, []string{
				strconv.FormatInt(l.ID, 10), l.ShortCode, l.ShortURL, l.OriginalURL, owner,
				strconv.FormatInt(l.ClickCount, 10), l.CreatedAt.UTC().Format(time.RFC3339), lastAccessed,
				strconv.FormatBool(l.Active),
			})
		}
	case "users":
		users, err := h.service.ListUsers(r.Context(), 1, exportUserLimit)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		rows = append(rows, []string{"id", "email", "role", "created_at", "last_login"})
		for _, u := range users {
			lastLogin := ""
			if u.LastLogin != nil {
				lastLogin = u.LastLogin.UTC().Format(time.RFC3339)
			}
			rows = append(rows, []string{
				strconv.FormatInt(u.ID, 10), u.Email, u.Role, u.CreatedAt.UTC().Format(time.RFC3339), lastLogin,
			})
		}
	default:
		writeFail(w, http.StatusBadRequest, "type must be urls or users")
		return
	}

	filename := fmt.Sprintf("%s-export-%s.csv", kind, time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		h.logger.Error(r.Context(), "csv export failed", "type", kind, "error", err)
	}
}
