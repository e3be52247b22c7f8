package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/media"
)

// imageField is the multipart form field carrying the upload
const imageField = "image"

// defaultMaxUpload bounds uploads when no limit is configured
const defaultMaxUpload = 5 << 20

// uploader reads multipart image uploads and hands them to the media store
type uploader struct {
	store    media.Store
	maxBytes int64
}

func newUploader(store media.Store, maxBytes int64) uploader {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUpload
	}
	return uploader{store: store, maxBytes: maxBytes}
}

// upload stores the request's image under prefix and returns its URL
func (u uploader) upload(r *http.Request, prefix string) (string, error) {
	if u.store == nil {
		return "", apierrors.ErrServiceUnavailable.WithRaw("image storage is not configured")
	}

	content, err := u.read(r)
	if err != nil {
		return "", err
	}

	url, err := u.store.PutImage(r.Context(), prefix, content)
	switch {
	case errors.Is(err, media.ErrNotAnImage), errors.Is(err, media.ErrTooLarge):
		return "", apierrors.ErrRequiredParametersMissing.WithRaw(err.Error())
	case err != nil:
		return "", apierrors.ErrServiceUnavailable.Wrap(err)
	}
	return url, nil
}

func (u uploader) read(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(u.maxBytes); err != nil {
		return nil, apierrors.Missing(imageField)
	}
	file, _, err := r.FormFile(imageField)
	if err != nil {
		return nil, apierrors.Missing(imageField)
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, u.maxBytes+1))
	if err != nil {
		return nil, apierrors.Missing(imageField)
	}
	if int64(len(content)) > u.maxBytes {
		return nil, apierrors.ErrRequiredParametersMissing.WithRaw(media.ErrTooLarge.Error())
	}
	if len(content) == 0 {
		return nil, apierrors.Missing(imageField)
	}
	return content, nil
}
