package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"imagestudio/internal/domain"
	"imagestudio/pkg/zip"
)

// HistoryList returns up to 20 records, newest first.
func (a *App) HistoryList(w http.ResponseWriter, r *http.Request) {
	records, err := a.History.List(r.Context())
	if err != nil {
		a.log(r).Error().Err(err).Msg("history: list failed")
		a.error(w, http.StatusInternalServerError, "Failed to fetch history", "")
		return
	}
	a.json(w, http.StatusOK, records)
}

func (a *App) HistoryGet(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.loadRecord(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, rec)
}

// HistoryArchive streams every still-stored image of one batch as a zip.
func (a *App) HistoryArchive(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.loadRecord(w, r)
	if !ok {
		return
	}
	objects, err := a.History.Images(r.Context(), rec)
	if err != nil {
		a.log(r).Error().Err(err).Int64("timestamp", rec.Timestamp).Msg("history: fetch images failed")
		a.error(w, http.StatusInternalServerError, "Failed to fetch images", "")
		return
	}

	modified := time.UnixMilli(rec.Timestamp).UTC()
	assets := make([]zip.Asset, 0, len(objects))
	for _, obj := range objects {
		assets = append(assets, zip.Asset{Filename: obj.Key, MIME: domain.ImageContentType, Data: obj.Data, Modified: modified})
	}
	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.log(r).Error().Err(err).Int64("timestamp", rec.Timestamp).Msg("history: build archive failed")
		a.error(w, http.StatusInternalServerError, "Failed to build archive", "")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=batch-%d.zip", rec.Timestamp))
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (a *App) loadRecord(w http.ResponseWriter, r *http.Request) (domain.HistoryRecord, bool) {
	ts, err := strconv.ParseInt(chi.URLParam(r, "timestamp"), 10, 64)
	if err != nil || ts <= 0 {
		a.error(w, http.StatusNotFound, "History record not found", "")
		return domain.HistoryRecord{}, false
	}
	rec, err := a.History.Get(r.Context(), ts)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "History record not found", "")
			return domain.HistoryRecord{}, false
		}
		a.log(r).Error().Err(err).Int64("timestamp", ts).Msg("history: get failed")
		a.error(w, http.StatusInternalServerError, "Failed to fetch history", "")
		return domain.HistoryRecord{}, false
	}
	return rec, true
}
