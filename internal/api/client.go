// Package api 封装对 NutriMind 后端接口的 HTTP 调用。
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"nutrimind/internal/config"
	"nutrimind/internal/model"
	"nutrimind/internal/utils"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg *config.ClientConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    utils.NewHTTPClient(cfg.Timeout),
	}
}

// Analyze 上传食品标签图片并返回结构化分析结果
func (c *Client) Analyze(ctx context.Context, filename string, image []byte) (*model.AnalyzeResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze/", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze request failed: %w", err)
	}
	defer resp.Body.Close()

	var result model.AnalyzeResponse
	if err := decodeJSON(resp, &result); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		if result.Error != "" {
			return nil, fmt.Errorf("analyze failed: %s", result.Error)
		}
		return nil, fmt.Errorf("analyze failed: unexpected status %d", resp.StatusCode)
	}

	return &result, nil
}

// Chat 带着分析 ID、追问和问答对上下文调用追问接口
func (c *Client) Chat(ctx context.Context, analysisID, question string, history []model.QAPair) (*model.ChatResponse, error) {
	reqBody := model.ChatRequest{
		AnalysisID: analysisID,
		Question:   question,
		History:    history,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	var result model.ChatResponse
	if err := decodeJSON(resp, &result); err != nil {
		return nil, err
	}

	// 非 200 的错误体同样携带 error 字段，原样传给上层展示
	return &result, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]model.SessionSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/session/list", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session list request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session list failed: unexpected status %d", resp.StatusCode)
	}

	var result []model.SessionSummary
	if err := decodeJSON(resp, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (*model.SessionDetail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/session/"+sessionID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session %s failed: unexpected status %d", sessionID, resp.StatusCode)
	}

	var result model.SessionDetail
	if err := decodeJSON(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func decodeJSON(resp *http.Response, v interface{}) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
