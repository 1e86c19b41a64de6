// Package gateway はバックエンドAPIへのステートレスなリクエスト/レスポンス窓口を提供する。
// 記事のページ取得、コメントの取得/投稿、通知の取得/既読化、トレンド取得を含む。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"

	"github.com/hitoshi/devradar/internal/model"
)

// Client はバックエンドAPIのクライアント。
// 全リクエストにクライアント側レートリミッタを適用し、
// 受信したHTML混じりのテキストはデコード時にサニタイズする。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	sanitizer  *bluemonday.Policy
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// requestsPerSecondが0以下の場合はレートリミッタを実質無効化する。
func NewClient(httpClient *http.Client, baseURL string, requestsPerSecond int, logger *slog.Logger) *Client {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		limiter:    rate.NewLimiter(limit, max(requestsPerSecond, 1)),
		sanitizer:  bluemonday.StrictPolicy(),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// ListArticles は記事をページ単位で取得する。
// categoryが空の場合はカテゴリ指定なしで取得する。
func (c *Client) ListArticles(ctx context.Context, skip, limit int, category string) ([]model.Article, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))
	if category != "" {
		q.Set("category", category)
	}

	var articles []model.Article
	if err := c.getJSON(ctx, "/articles?"+q.Encode(), "記事一覧の取得", &articles); err != nil {
		return nil, err
	}

	for i := range articles {
		articles[i].Desc = c.sanitizer.Sanitize(articles[i].Desc)
		if articles[i].Category == "" {
			articles[i].Category = model.DefaultCategory
		}
	}

	return articles, nil
}

// ListComments は指定記事の全コメントをフラットなリストで取得する。
func (c *Client) ListComments(ctx context.Context, articleURL string) ([]model.Comment, error) {
	q := url.Values{}
	q.Set("articleUrl", articleURL)

	var comments []model.Comment
	if err := c.getJSON(ctx, "/comments?"+q.Encode(), "コメント一覧の取得", &comments); err != nil {
		return nil, err
	}

	for i := range comments {
		comments[i].Content = c.sanitizer.Sanitize(comments[i].Content)
	}

	return comments, nil
}

// CreateComment はコメントを投稿し、保存されたコメントを返す。
func (c *Client) CreateComment(ctx context.Context, comment model.Comment) (model.Comment, error) {
	const op = "コメントの投稿"

	body, err := json.Marshal(comment)
	if err != nil {
		return model.Comment{}, model.NewDecodeError(op, err)
	}

	var stored model.Comment
	if err := c.postJSON(ctx, "/comments", op, bytes.NewReader(body), &stored); err != nil {
		return model.Comment{}, err
	}

	stored.Content = c.sanitizer.Sanitize(stored.Content)
	return stored, nil
}

// ListNotifications は指定ユーザーの通知一覧を取得する。
func (c *Client) ListNotifications(ctx context.Context, userID int) ([]model.Notification, error) {
	q := url.Values{}
	q.Set("userId", strconv.Itoa(userID))

	var notifications []model.Notification
	if err := c.getJSON(ctx, "/notifications?"+q.Encode(), "通知一覧の取得", &notifications); err != nil {
		return nil, err
	}

	return notifications, nil
}

// MarkNotificationRead は指定IDの通知を既読化する。
// サーバー側で冪等に処理されるため、同一IDの二重ackは安全。
func (c *Client) MarkNotificationRead(ctx context.Context, notificationID string) error {
	path := fmt.Sprintf("/notifications/%s/read", url.PathEscape(notificationID))
	return c.postJSON(ctx, path, "通知の既読化", nil, nil)
}

// ListTrends はキーワードトレンドを取得する。
func (c *Client) ListTrends(ctx context.Context) ([]model.TrendKeyword, error) {
	var trends []model.TrendKeyword
	if err := c.getJSON(ctx, "/trends", "トレンドの取得", &trends); err != nil {
		return nil, err
	}

	return trends, nil
}

// UploadAvatar はユーザーのアバター画像をmultipartでアップロードし、
// 保存先URLを返す。
func (c *Client) UploadAvatar(ctx context.Context, userID int, filename string, file io.Reader) (string, error) {
	const op = "アバターのアップロード"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", model.NewTransportError(op, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", model.NewTransportError(op, err)
	}
	if err := mw.Close(); err != nil {
		return "", model.NewTransportError(op, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", model.NewTransportError(op, err)
	}

	reqURL := fmt.Sprintf("%s/users/%d/avatar", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, &buf)
	if err != nil {
		return "", model.NewTransportError(op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result struct {
		URL string `json:"url"`
	}
	if err := c.do(req, op, &result); err != nil {
		return "", err
	}

	return result.URL, nil
}

// getJSON はGETリクエストを実行し、レスポンスJSONをoutにデコードする。
func (c *Client) getJSON(ctx context.Context, path, op string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.NewTransportError(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return model.NewTransportError(op, err)
	}

	return c.do(req, op, out)
}

// postJSON はPOSTリクエストを実行し、outが非nilの場合はレスポンスJSONをデコードする。
func (c *Client) postJSON(ctx context.Context, path, op string, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.NewTransportError(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return model.NewTransportError(op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("APIリクエストに失敗しました",
			slog.String("op", op),
			slog.String("url", req.URL.String()),
			slog.String("error", err.Error()),
		)
		return model.NewTransportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("APIがエラーステータスを返しました",
			slog.String("op", op),
			slog.Int("http_status", resp.StatusCode),
		)
		return model.NewUnexpectedStatusError(op, resp.StatusCode)
	}

	if out == nil {
		// ボディを読み捨ててコネクションを再利用可能にする
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.NewTransportError(op, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("APIレスポンスの解析に失敗しました",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return model.NewDecodeError(op, err)
	}

	return nil
}
