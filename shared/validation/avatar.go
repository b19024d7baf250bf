package validation

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/webp"

	"github.com/askline-dev/askline/shared/errors"
)

// MaxAvatarBytes caps avatar uploads at 3MB.
const MaxAvatarBytes = 3 * 1024 * 1024

var allowedAvatarFormats = map[string]string{
	"png":  ".png",
	"jpeg": ".jpg",
	"webp": ".webp",
}

// CheckedImage is a validated upload ready for the blob store.
type CheckedImage struct {
	Extension string
	Width     int
	Height    int
	Data      io.Reader
}

// ValidateAvatar enforces type and size limits on an avatar upload and
// probes its dimensions. The returned reader replays the full payload.
func ValidateAvatar(filename string, size int64, data io.Reader) (*CheckedImage, error) {
	if size > MaxAvatarBytes {
		return nil, &errors.ValidationError{Message: "image must be at most 3MB"}
	}

	payload, err := io.ReadAll(io.LimitReader(data, MaxAvatarBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", filename, err)
	}
	if len(payload) > MaxAvatarBytes {
		return nil, &errors.ValidationError{Message: "image must be at most 3MB"}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return nil, &errors.ValidationError{Message: "please choose a PNG/JPEG/WEBP image"}
	}
	ext, ok := allowedAvatarFormats[format]
	if !ok {
		return nil, &errors.ValidationError{Message: "please choose a PNG/JPEG/WEBP image"}
	}

	return &CheckedImage{
		Extension: ext,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Data:      bytes.NewReader(payload),
	}, nil
}
