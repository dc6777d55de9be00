package halcyon

import (
	"context"
	"fmt"
	"io"

	"github.com/halcyonai/halcyon/internal/httpx"
)

const (
	imageGenerationsPath = "/images/generations"
	imageEditsPath       = "/images/edits"
	imageVariationsPath  = "/images/variations"
)

// ImageRequest is the request body for image generation.
type ImageRequest struct {
	Model          string `json:"model,omitempty"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"` // "url" or "b64_json"
	User           string `json:"user,omitempty"`
}

// ImageData is one generated image, delivered as a URL or base64 payload
// depending on the requested response format.
type ImageData struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// ImageResponse is the response for all image endpoints.
type ImageResponse struct {
	Created int64       `json:"created"`
	Data    []ImageData `json:"data"`
}

// ImageEditRequest edits an image according to a prompt. Image is required;
// Mask optionally marks the regions to edit.
type ImageEditRequest struct {
	Image          io.Reader
	ImageName      string
	Mask           io.Reader
	MaskName       string
	Prompt         string
	Model          string
	N              int
	Size           string
	ResponseFormat string
	User           string
}

// ImageVariationRequest produces variations of a source image.
type ImageVariationRequest struct {
	Image          io.Reader
	ImageName      string
	Model          string
	N              int
	Size           string
	ResponseFormat string
	User           string
}

// CreateImage generates images from a text prompt.
func (c *Client) CreateImage(ctx context.Context, request ImageRequest) (*ImageResponse, error) {
	_, response, err := httpx.DoPostSync[ImageResponse](
		c.callContext(ctx), c.syncClient(), c.endpointURL(imageGenerationsPath), c.apiKey, request, c.headers()...)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return response, nil
}

// CreateImageEdit edits the given image according to the prompt. The image
// (and mask, when present) upload as multipart form files.
func (c *Client) CreateImageEdit(ctx context.Context, request ImageEditRequest) (*ImageResponse, error) {
	if request.Image == nil {
		return nil, fmt.Errorf("image edit: Image reader is required")
	}

	fields := map[string]string{
		"prompt":          request.Prompt,
		"model":           request.Model,
		"size":            request.Size,
		"response_format": request.ResponseFormat,
		"user":            request.User,
	}
	if request.N > 0 {
		fields["n"] = fmt.Sprint(request.N)
	}

	files := []httpx.FilePart{{FieldName: "image", FileName: fileNameOr(request.ImageName, "image.png"), Reader: request.Image}}
	if request.Mask != nil {
		files = append(files, httpx.FilePart{FieldName: "mask", FileName: fileNameOr(request.MaskName, "mask.png"), Reader: request.Mask})
	}

	_, response, err := httpx.DoPostMultipart[ImageResponse](
		c.callContext(ctx), c.syncClient(), c.endpointURL(imageEditsPath), c.apiKey, fields, files, c.headers()...)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return response, nil
}

// CreateImageVariation produces variations of the given source image.
func (c *Client) CreateImageVariation(ctx context.Context, request ImageVariationRequest) (*ImageResponse, error) {
	if request.Image == nil {
		return nil, fmt.Errorf("image variation: Image reader is required")
	}

	fields := map[string]string{
		"model":           request.Model,
		"size":            request.Size,
		"response_format": request.ResponseFormat,
		"user":            request.User,
	}
	if request.N > 0 {
		fields["n"] = fmt.Sprint(request.N)
	}

	files := []httpx.FilePart{{FieldName: "image", FileName: fileNameOr(request.ImageName, "image.png"), Reader: request.Image}}

	_, response, err := httpx.DoPostMultipart[ImageResponse](
		c.callContext(ctx), c.syncClient(), c.endpointURL(imageVariationsPath), c.apiKey, fields, files, c.headers()...)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return response, nil
}

// fileNameOr returns name, or fallback when the caller left it empty.
func fileNameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
