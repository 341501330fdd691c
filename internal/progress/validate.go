package progress

import (
	"encoding/base64"
	"strings"

	"github.com/abem93/progress-widgets/internal/apperr"
	"github.com/abem93/progress-widgets/internal/models"
)

// MaxImageBytes caps the decoded size of an inline item image.
const MaxImageBytes = 1024 * 1024

// ValidateImage accepts a base64 data URL with an image/* media type.
func ValidateImage(dataURL string) error {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return apperr.Validation("image must be a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return apperr.Validation("image must be a data URL")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return apperr.Validation("image must be base64 encoded")
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return apperr.Validation("please select an image file")
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+2 {
		return apperr.Validation("file size must be less than 1MB")
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return apperr.Validation("image payload is not valid base64")
	}
	if len(decoded) > MaxImageBytes {
		return apperr.Validation("file size must be less than 1MB")
	}
	return nil
}

// ValidateItem checks a single item before it reaches a store.
func ValidateItem(item models.ProgressItem) error {
	if strings.TrimSpace(item.ID) == "" {
		return apperr.Validation("item id is required")
	}
	if strings.TrimSpace(item.Label) == "" {
		return apperr.Validation("item %s: label is required", item.ID)
	}
	if item.Goal <= 0 {
		return apperr.Validation("item %s: goal must be greater than zero", item.ID)
	}
	if item.Percentage < 0 || item.Percentage > 100 {
		return apperr.Validation("item %s: percentage must be between 0 and 100", item.ID)
	}
	if !ValidColor(item.Color) {
		return apperr.Validation("item %s: unknown color %q", item.ID, item.Color)
	}
	if item.Image != nil {
		if err := ValidateImage(*item.Image); err != nil {
			return err
		}
	}
	return nil
}

// ValidateItems checks a widget's item list: at least one item and ids
// unique within the widget.
func ValidateItems(items []models.ProgressItem) error {
	if len(items) == 0 {
		return apperr.Validation("at least one item is required")
	}
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if err := ValidateItem(item); err != nil {
			return err
		}
		if seen[item.ID] {
			return apperr.Validation("duplicate item id %q", item.ID)
		}
		seen[item.ID] = true
	}
	return nil
}
