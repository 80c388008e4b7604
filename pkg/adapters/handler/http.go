package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/wadjakorntonsri/linkshort/pkg/core/domain"
	"github.com/wadjakorntonsri/linkshort/pkg/logging"
	"github.com/wadjakorntonsri/linkshort/pkg/ports"
)

type LinkHandler struct {
	service ports.LinkService
	logger  *logging.Logger
}

func NewLinkHandler(service ports.LinkService, logger *logging.Logger) *LinkHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &LinkHandler{service: service, logger: logger}
}

// ShortenRequest payload. "url" and "original_url" are accepted alike.
type ShortenRequest struct {
	URL         string `json:"url"`
	OriginalURL string `json:"original_url"`
	CustomCode  string `json:"custom_code,omitempty"`
}

// Shorten creates a link, owned by the caller when a token was sent.
func (h *LinkHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	var req ShortenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	target := req.OriginalURL
	if target == "" {
		target = req.URL
	}

	in := ports.ShortenRequest{OriginalURL: target, CustomCode: req.CustomCode}
	if p := PrincipalFrom(r.Context()); p != nil {
		id := p.UserID
		in.OwnerID = &id
	}

	link, err := h.service.Shorten(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Short URL created successfully", link)
}

// Redirect answers 302 to the original URL and records the click unless
// no_stat is set.
func (h *LinkHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var (
		target string
		err    error
	)
	if r.URL.Query().Get("no_stat") != "" {
		var link *domain.Link
		if link, err = h.service.Lookup(r.Context(), code); err == nil {
			target = link.OriginalURL
		}
	} else {
		target, err = h.service.Resolve(r.Context(), code, clientInfo(r))
	}

	if errors.Is(err, domain.ErrNotFound) {
		writeFail(w, http.StatusNotFound, "Short URL not found")
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Debug(r.Context(), "redirect", "code", code)
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *LinkHandler) Stats(w http.ResponseWriter, r *http.Request) {
	link, err := h.service.PublicStats(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "", link)
}

func (h *LinkHandler) MyURLs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	links, err := h.service.ListMine(r.Context(), PrincipalFrom(r.Context()).UserID, limit, offset)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "", links)
}

func (h *LinkHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	report, err := h.service.Analytics(r.Context(), chi.URLParam(r, "code"), PrincipalFrom(r.Context()), days)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "", report)
}

func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id, PrincipalFrom(r.Context())); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "URL deleted successfully", nil)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeFail(w, http.StatusBadRequest, "Invalid ID")
		return 0, false
	}
	return id, true
}
