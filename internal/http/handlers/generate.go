package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"imagestudio/internal/domain"
)

const maxGenerateBodyBytes = 64 << 10

type generateRequest struct {
	Prompt    *string `json:"prompt"`
	Steps     *int    `json:"steps"`
	NumImages *int    `json:"numImages"`
}

type generatedImage struct {
	Base64 string `json:"base64"`
	R2Key  string `json:"r2Key"`
	Index  int    `json:"index"`
}

type generateResponse struct {
	Success        bool             `json:"success"`
	Images         []generatedImage `json:"images"`
	Timestamp      int64            `json:"timestamp"`
	Prompt         string           `json:"prompt"`
	Steps          int              `json:"steps"`
	NumImages      int              `json:"numImages"`
	GeneratedCount int              `json:"generatedCount"`
	R2Keys         []string         `json:"r2Keys"`
}

// Generate validates the body, runs one batch and reports every stored image.
// A batch with some failed attempts is still a 200; generatedCount tells the
// caller how many of numImages made it.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	log := a.log(r)

	in, err := decodeGenerateInput(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "Request body too large", "")
			return
		}
		log.Warn().Err(err).Msg("generate: malformed request body")
		a.error(w, http.StatusInternalServerError, "Failed to generate images", err.Error())
		return
	}

	req, err := in.Validate()
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			a.error(w, http.StatusBadRequest, verr.Message, "")
			return
		}
		a.error(w, http.StatusInternalServerError, "Failed to generate images", err.Error())
		return
	}

	res, err := a.Generation.Generate(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrBatchFailed) {
			log.Error().Err(err).Int("requested", req.ImageCount).Msg("generate: batch failed")
			a.error(w, http.StatusInternalServerError, "Failed to generate any images", err.Error())
			return
		}
		log.Error().Err(err).Msg("generate: unexpected failure")
		a.error(w, http.StatusInternalServerError, "Failed to generate images", err.Error())
		return
	}

	resp := generateResponse{
		Success:        true,
		Images:         make([]generatedImage, 0, len(res.Images)),
		Timestamp:      res.Timestamp,
		Prompt:         res.Prompt,
		Steps:          res.Steps,
		NumImages:      res.RequestedCount,
		GeneratedCount: res.GeneratedCount,
		R2Keys:         res.StorageKeys,
	}
	for _, img := range res.Images {
		resp.Images = append(resp.Images, generatedImage{Base64: img.DisplayEncoding, R2Key: img.StorageKey, Index: img.Index})
	}
	a.json(w, http.StatusOK, resp)
}

// decodeGenerateInput maps a wrongly typed field onto an out-of-range value
// so it fails validation with that field's message, in the usual order.
// Any other decoding failure is returned as an error.
func decodeGenerateInput(w http.ResponseWriter, r *http.Request) (domain.GenerationInput, error) {
	var body generateRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGenerateBodyBytes)).Decode(&body)
	if errors.Is(err, io.EOF) {
		// empty body: let validation report the missing prompt
		err = nil
	}

	var typeErr *json.UnmarshalTypeError
	if err != nil && !errors.As(err, &typeErr) {
		return domain.GenerationInput{}, err
	}

	in := domain.GenerationInput{Steps: body.Steps, NumImages: body.NumImages}
	if body.Prompt != nil {
		in.Prompt = *body.Prompt
	}
	if typeErr != nil {
		invalid := 0
		switch typeErr.Field {
		case "prompt":
			in.Prompt = ""
		case "steps":
			in.Steps = &invalid
		case "numImages":
			in.NumImages = &invalid
		default:
			return domain.GenerationInput{}, err
		}
	}
	return in, nil
}
