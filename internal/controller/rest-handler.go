package controller

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/cinemate/server/internal/service/media"
	"github.com/cinemate/server/pkg/rest"
)

type ExtractMediaInput struct {
	Url string `json:"url" validate:"required,max=2048"`
}

func (c *controller) extractMedia(w http.ResponseWriter, r *http.Request) {
	var input ExtractMediaInput
	if err := rest.ReadJSON(r, &input); err != nil {
		c.logger.DebugContext(r.Context(), "failed to read extract request", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(input); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	mediaRef, err := c.mediaService.Resolve(r.Context(), input.Url)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to resolve media", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "failed to resolve media"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, mediaRef)
}

type ResolveRutubeInput struct {
	VideoId string `json:"videoId" validate:"required,max=64"`
}

func (c *controller) resolveRutube(w http.ResponseWriter, r *http.Request) {
	var input ResolveRutubeInput
	if err := rest.ReadJSON(r, &input); err != nil {
		c.logger.DebugContext(r.Context(), "failed to read rutube request", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(input); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	mediaRef, err := c.mediaService.ResolveRutube(r.Context(), input.VideoId)
	if err != nil {
		if errors.Is(err, media.ErrVideoNotFound) {
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "video not found"})
			return
		}

		c.logger.WarnContext(r.Context(), "failed to resolve rutube video", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "failed to resolve video"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, mediaRef)
}

type ResolveVKInput struct {
	Oid string `json:"oid" validate:"required,max=32"`
	Id  string `json:"id" validate:"required,max=32"`
}

func (c *controller) resolveVK(w http.ResponseWriter, r *http.Request) {
	var input ResolveVKInput
	if err := rest.ReadJSON(r, &input); err != nil {
		c.logger.DebugContext(r.Context(), "failed to read vk request", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(input); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	rest.WriteJSON(w, http.StatusOK, c.mediaService.ResolveVK(input.Oid, input.Id))
}

func (c *controller) streamRedirect(w http.ResponseWriter, r *http.Request) {
	videoUrl := r.URL.Query().Get("url")
	if videoUrl == "" {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": "url is required"})
		return
	}

	if _, err := url.ParseRequestURI(videoUrl); err != nil {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": "invalid url"})
		return
	}

	http.Redirect(w, r, videoUrl, http.StatusFound)
}
