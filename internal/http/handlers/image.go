package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"imagestudio/internal/domain"
)

// Image serves a stored blob. The key is everything after /api/image/.
func (a *App) Image(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || key == "" {
		a.text(w, http.StatusNotFound, "Image not found")
		return
	}

	obj, err := a.Blobs.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.text(w, http.StatusNotFound, "Image not found")
			return
		}
		a.log(r).Error().Err(err).Str("key", key).Msg("image: fetch failed")
		a.text(w, http.StatusInternalServerError, "Error fetching image")
		return
	}

	w.Header().Set("Content-Type", domain.ImageContentType)
	w.Header().Set("Cache-Control", domain.ImageCacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}
