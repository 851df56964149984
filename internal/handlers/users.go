package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const avatarUploadTTL = 15 * time.Minute

func (a *API) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{"user": viewUser(user)})
}

type avatarUploadRequest struct {
	ContentType string `json:"content_type" validate:"omitempty,oneof=image/png image/jpeg image/webp"`
}

// handleAvatarUpload hands the client a presigned PUT URL and records the
// resulting object URL on the profile. Without object storage configured the
// endpoint reports 424 so clients can distinguish "not available here" from
// a transient failure.
func (a *API) handleAvatarUpload(w http.ResponseWriter, r *http.Request) {
	if a.storage == nil {
		respondError(w, http.StatusFailedDependency, errors.New("object storage is not configured"))
		return
	}

	var req avatarUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		req = avatarUploadRequest{}
	}
	if err := a.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("content_type must be image/png, image/jpeg, or image/webp"))
		return
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "image/png"
	}

	user := currentUser(r.Context())
	key := fmt.Sprintf("avatars/%s/%s", user.ID, uuid.NewString())

	uploadURL, err := a.storage.PresignPut(r.Context(), a.avatarBucket, key, contentType, avatarUploadTTL)
	if err != nil {
		a.log.Error().Err(err).Str("user_id", user.ID.String()).Msg("presign avatar upload")
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	objectURL := a.storage.ObjectURL(a.avatarBucket, key)
	user.AvatarURL = &objectURL
	if err := a.store.UpdateUser(r.Context(), user); err != nil {
		a.log.Error().Err(err).Str("user_id", user.ID.String()).Msg("store avatar url")
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"upload_url": uploadURL,
		"avatar_url": objectURL,
		"expires_in": int64(avatarUploadTTL.Seconds()),
	})
}
