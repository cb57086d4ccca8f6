package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// WhisperCppClient talks to the whisper.cpp HTTP server (whisper-server).
type WhisperCppClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewWhisperCppClient(baseURL string, httpClient *http.Client) *WhisperCppClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &WhisperCppClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *WhisperCppClient) Name() string {
	return "whisper.cpp"
}

func (c *WhisperCppClient) Transcribe(ctx context.Context, req Request) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	name := req.FileName
	if name == "" {
		name = "audio.webm"
	}
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return "", fmt.Errorf("copy audio data: %w", err)
	}
	writer.WriteField("response_format", "json")
	writer.WriteField("temperature", "0.0")
	if req.Language != "" && req.Language != "auto" {
		writer.WriteField("language", req.Language)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/inference", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("whisper server request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper server error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		Text  string `json:"text"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode whisper response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("whisper server: %s", out.Error)
	}
	return out.Text, nil
}
