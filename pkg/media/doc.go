// Package media stores university and event images in S3-compatible object
// storage.
//
// Images are sniffed with http.DetectContentType and only PNG, JPEG, GIF and
// WebP are accepted. Keys are content addressed so re-uploading the same
// image is a single HeadObject call.
package media
