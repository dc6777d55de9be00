package httpx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// FilePart is one file attached to a multipart upload.
type FilePart struct {
	// FieldName is the form field the file is sent under (e.g. "file", "mask").
	FieldName string
	// FileName is the client-side file name reported to the server.
	FileName string
	// Reader supplies the file contents.
	Reader io.Reader
}

// DoPostMultipart performs a synchronous multipart/form-data POST carrying
// the given scalar fields and files, and decodes the JSON response into
// OutputStruct. Same error handling strategy as [DoPostSync]. Fields with an
// empty value are omitted from the form.
func DoPostMultipart[OutputStruct any](ctx context.Context, client *http.Client, url string, apiKey string, fields map[string]string, files []FilePart, headers ...HeaderOption) (*http.Response, *OutputStruct, error) {
	var formBody bytes.Buffer
	writer := multipart.NewWriter(&formBody)

	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return nil, nil, fmt.Errorf("error writing form field %q: %w", name, err)
		}
	}

	for _, file := range files {
		part, err := writer.CreateFormFile(file.FieldName, file.FileName)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating form file %q: %w", file.FieldName, err)
		}
		if _, err := io.Copy(part, file.Reader); err != nil {
			return nil, nil, fmt.Errorf("error copying form file %q: %w", file.FieldName, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, nil, fmt.Errorf("error finalizing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &formBody)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	response, respBody, err := send(ctx, client, req, apiKey, formBody.Len(), headers)
	if err != nil {
		return response, nil, err
	}

	result, err := decodeBody[OutputStruct](response, respBody)
	return response, result, err
}
