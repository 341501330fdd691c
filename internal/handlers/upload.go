package handlers

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/abem93/progress-widgets/internal/progress"
	"github.com/gofiber/fiber/v2"
)

// UploadImage turns an uploaded file into the inline data URL stored on a
// progress item. Nothing is written to disk.
func (h *Handler) UploadImage(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return badRequest(c, "No image file provided")
	}

	if file.Size > progress.MaxImageBytes {
		return badRequest(c, "File size must be less than 1MB")
	}

	f, err := file.Open()
	if err != nil {
		return badRequest(c, "Failed to read image")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, progress.MaxImageBytes+1))
	if err != nil {
		return badRequest(c, "Failed to read image")
	}
	if len(data) > progress.MaxImageBytes {
		return badRequest(c, "File size must be less than 1MB")
	}

	// Sniff the content instead of trusting the filename or the client header.
	contentType := http.DetectContentType(data)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if !strings.HasPrefix(contentType, "image/") {
		return badRequest(c, "Please select an image file")
	}

	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	if err := progress.ValidateImage(dataURL); err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"image": dataURL,
	})
}
