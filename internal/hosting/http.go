package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zsiec/hostpanel/internal/logger"
	"github.com/zsiec/hostpanel/internal/metrics"
	"github.com/zsiec/hostpanel/internal/reconnect"
	"github.com/zsiec/hostpanel/pkg/version"
)

const maxResponseBytes = 8 << 20

// Options configures HTTPClient.
type Options struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration // 0 keeps the transport default
	MaxRetries     int           // retries for reads only
	RetryBaseDelay time.Duration
	HTTPClient     *http.Client
	Logger         logger.Logger
}

// HTTPClient talks to the Discloud v2 REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	maxRetries int
	baseDelay  time.Duration
	httpClient *http.Client
	userAgent  string
	logger     logger.Logger
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(opts Options) *HTTPClient {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.RetryBaseDelay,
		httpClient: hc,
		userAgent:  version.GetInfo().UserAgent(),
		logger:     log.WithField("component", "hosting"),
	}
}

// envelope is the part every response shares.
type envelope struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Code       string `json:"code"`
}

type request struct {
	endpoint    string // metrics label
	method      string
	path        string
	body        []byte
	contentType string
}

func (c *HTTPClient) strategy(method string) reconnect.Strategy {
	if method != http.MethodGet || c.maxRetries <= 0 {
		return reconnect.NoRetry{}
	}
	return reconnect.NewExponentialBackoff(c.baseDelay, 8*c.baseDelay, 2.0, c.maxRetries)
}

// call performs r and decodes a successful body into out (may be nil).
// Reads are retried on transport errors and 5xx; writes never are.
func (c *HTTPClient) call(ctx context.Context, r request, out interface{}) error {
	log := c.logger.WithFields(map[string]interface{}{
		"endpoint": r.endpoint,
		"method":   r.method,
	})
	hooks := reconnect.Hooks{
		OnRetry: func(int, error, time.Duration) { metrics.IncrementHostingRetries(r.endpoint) },
	}

	return reconnect.Retry(ctx, c.strategy(r.method), log, hooks, func(ctx context.Context) error {
		body, status, err := c.roundTrip(ctx, r)
		if err != nil {
			if ctx.Err() != nil {
				return reconnect.Permanent(err)
			}
			return err
		}

		if err := decodeEnvelope(status, body); err != nil {
			var apiErr *APIError
			if stderrors.As(err, &apiErr) && apiErr.Temporary() {
				return err
			}
			return reconnect.Permanent(err)
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return reconnect.Permanent(fmt.Errorf("failed to parse %s response: %w", r.endpoint, err))
		}
		return nil
	})
}

func (c *HTTPClient) roundTrip(ctx context.Context, r request) ([]byte, int, error) {
	var reader io.Reader
	if r.body != nil {
		reader = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("api-token", c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveHostingRequest(r.endpoint, 0, time.Since(start))
		return nil, 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	metrics.ObserveHostingRequest(r.endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func decodeEnvelope(status int, body []byte) error {
	var env envelope
	jsonErr := json.Unmarshal(body, &env)

	if status < 200 || status > 299 {
		apiErr := &APIError{StatusCode: status, Status: env.Status, Message: env.Message, Code: env.Code}
		if jsonErr != nil {
			apiErr.Message = strings.TrimSpace(string(body))
			if len(apiErr.Message) > 200 {
				apiErr.Message = apiErr.Message[:200]
			}
		}
		return apiErr
	}
	if jsonErr != nil {
		return fmt.Errorf("failed to parse response: %w", jsonErr)
	}
	if env.Status != "ok" {
		code := env.StatusCode
		if code == 0 {
			code = status
		}
		return &APIError{StatusCode: code, Status: env.Status, Message: env.Message, Code: env.Code}
	}
	return nil
}

func jsonRequest(endpoint, method, path string, payload interface{}) (request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return request{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	return request{endpoint: endpoint, method: method, path: path, body: body, contentType: "application/json"}, nil
}

func multipartRequest(endpoint, method, path string, archive Archive) (request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", archive.Name)
	if err != nil {
		return request{}, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(archive.Data); err != nil {
		return request{}, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return request{}, fmt.Errorf("failed to build upload: %w", err)
	}
	return request{endpoint: endpoint, method: method, path: path, body: buf.Bytes(), contentType: w.FormDataContentType()}, nil
}

func appPath(appID string, suffix ...string) string {
	p := "/app/" + url.PathEscape(appID)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

// Wire shapes.

type wireApp struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Online        bool   `json:"online"`
	RAMKilled     bool   `json:"ramKilled"`
	RAM           int    `json:"ram"`
	MainFile      string `json:"mainFile"`
	Lang          string `json:"lang"`
	AutoDeployGit string `json:"autoDeployGit"`
	AutoRestart   bool   `json:"autoRestart"`
	AvatarURL     string `json:"avatarURL"`
	Type          int    `json:"type"`
}

func (w wireApp) toApplication() Application {
	return Application{
		ID:            w.ID,
		Name:          w.Name,
		Online:        w.Online,
		Language:      w.Lang,
		MainFile:      w.MainFile,
		AvatarURL:     w.AvatarURL,
		AutoDeployGit: w.AutoDeployGit,
		AutoRestart:   w.AutoRestart,
		RAMKilled:     w.RAMKilled,
		Type:          AppType(w.Type),
		RAM:           w.RAM,
	}
}

type wireUser struct {
	UserID      string `json:"userID"`
	Plan        string `json:"plan"`
	PlanDataEnd string `json:"planDataEnd"`
	RAMUsedMB   int    `json:"ramUsedMb"`
	TotalRAMMB  int    `json:"totalRamMb"`
	Locale      string `json:"locale"`
}

type wireStatus struct {
	ID        string `json:"id"`
	Container string `json:"container"`
	CPU       string `json:"cpu"`
	Memory    string `json:"memory"`
	SSD       string `json:"ssd"`
	NetIO     struct {
		Down string `json:"down"`
		Up   string `json:"up"`
	} `json:"netIO"`
	LastRestart string `json:"last_restart"`
	StartedAt   string `json:"startedAt"`
}

type wireMod struct {
	ModID string   `json:"modID"`
	Perms []string `json:"perms"`
}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func actionResult(env envelope) *ActionResult {
	return &ActionResult{Status: env.Status, Message: env.Message}
}

// Reads.

func (c *HTTPClient) ListApplications(ctx context.Context) ([]Application, error) {
	var resp struct {
		Apps []wireApp `json:"apps"`
	}
	if err := c.call(ctx, request{endpoint: "app_list", method: http.MethodGet, path: "/app/all"}, &resp); err != nil {
		return nil, err
	}
	apps := make([]Application, 0, len(resp.Apps))
	for _, w := range resp.Apps {
		apps = append(apps, w.toApplication())
	}
	return apps, nil
}

func (c *HTTPClient) ApplicationInfo(ctx context.Context, appID string) (*Application, error) {
	var resp struct {
		Apps wireApp `json:"apps"`
	}
	if err := c.call(ctx, request{endpoint: "app_info", method: http.MethodGet, path: appPath(appID)}, &resp); err != nil {
		return nil, err
	}
	app := resp.Apps.toApplication()
	return &app, nil
}

func (c *HTTPClient) UserInfo(ctx context.Context) (*User, error) {
	var resp struct {
		User wireUser `json:"user"`
	}
	if err := c.call(ctx, request{endpoint: "user", method: http.MethodGet, path: "/user"}, &resp); err != nil {
		return nil, err
	}
	return &User{
		ID:            resp.User.UserID,
		Plan:          resp.User.Plan,
		PlanExpiresAt: parseTime(resp.User.PlanDataEnd),
		UsingRAM:      resp.User.RAMUsedMB,
		TotalRAM:      resp.User.TotalRAMMB,
		Locale:        resp.User.Locale,
	}, nil
}

func (c *HTTPClient) Status(ctx context.Context, appID string) (*AppStatus, error) {
	var resp struct {
		Apps wireStatus `json:"apps"`
	}
	if err := c.call(ctx, request{endpoint: "app_status", method: http.MethodGet, path: appPath(appID, "status")}, &resp); err != nil {
		return nil, err
	}
	w := resp.Apps
	using, available, _ := strings.Cut(w.Memory, "/")
	return &AppStatus{
		ID:              w.ID,
		Container:       w.Container,
		CPU:             w.CPU,
		MemoryUsing:     strings.TrimSpace(using),
		MemoryAvailable: strings.TrimSpace(available),
		NetDown:         w.NetIO.Down,
		NetUp:           w.NetIO.Up,
		SSD:             w.SSD,
		StartedAt:       parseTime(w.StartedAt),
		OnlineSince:     w.LastRestart,
	}, nil
}

func (c *HTTPClient) Logs(ctx context.Context, appID string) (*Logs, error) {
	var resp struct {
		Apps struct {
			Terminal struct {
				Big   string `json:"big"`
				Small string `json:"small"`
				URL   string `json:"url"`
			} `json:"terminal"`
		} `json:"apps"`
	}
	if err := c.call(ctx, request{endpoint: "app_logs", method: http.MethodGet, path: appPath(appID, "logs")}, &resp); err != nil {
		return nil, err
	}
	term := resp.Apps.Terminal
	tail := term.Big
	if tail == "" {
		tail = term.Small
	}
	return &Logs{Tail: tail, URL: term.URL}, nil
}

func (c *HTTPClient) Backup(ctx context.Context, appID string) (*Backup, error) {
	var resp struct {
		Backups struct {
			URL string `json:"url"`
		} `json:"backups"`
	}
	if err := c.call(ctx, request{endpoint: "app_backup", method: http.MethodGet, path: appPath(appID, "backup")}, &resp); err != nil {
		return nil, err
	}
	if resp.Backups.URL == "" {
		return nil, &APIError{Status: "error", Message: "backup is not available yet"}
	}
	return &Backup{URL: resp.Backups.URL}, nil
}

func (c *HTTPClient) ListModerators(ctx context.Context, appID string) ([]Moderator, error) {
	var resp struct {
		Team []wireMod `json:"team"`
	}
	if err := c.call(ctx, request{endpoint: "team_list", method: http.MethodGet, path: appPath(appID, "team")}, &resp); err != nil {
		return nil, err
	}
	mods := make([]Moderator, 0, len(resp.Team))
	for _, w := range resp.Team {
		perms, unknown := ParsePermSet(w.Perms)
		if len(unknown) > 0 {
			c.logger.WithFields(map[string]interface{}{
				"mod_id":  w.ModID,
				"unknown": unknown,
			}).Warn("Moderator holds permissions outside the known vocabulary")
		}
		mods = append(mods, Moderator{ID: w.ModID, Perms: perms})
	}
	return mods, nil
}

// Writes.

func (c *HTTPClient) action(ctx context.Context, r request) (*ActionResult, error) {
	var env envelope
	if err := c.call(ctx, r, &env); err != nil {
		return nil, err
	}
	return actionResult(env), nil
}

func (c *HTTPClient) Start(ctx context.Context, appID string) (*ActionResult, error) {
	return c.action(ctx, request{endpoint: "app_start", method: http.MethodPut, path: appPath(appID, "start")})
}

func (c *HTTPClient) Stop(ctx context.Context, appID string) (*ActionResult, error) {
	return c.action(ctx, request{endpoint: "app_stop", method: http.MethodPut, path: appPath(appID, "stop")})
}

func (c *HTTPClient) Restart(ctx context.Context, appID string) (*ActionResult, error) {
	return c.action(ctx, request{endpoint: "app_restart", method: http.MethodPut, path: appPath(appID, "restart")})
}

func (c *HTTPClient) ResizeRAM(ctx context.Context, appID string, mb int) (*ActionResult, error) {
	r, err := jsonRequest("app_ram", http.MethodPut, appPath(appID, "ram"), map[string]int{"ramMB": mb})
	if err != nil {
		return nil, err
	}
	return c.action(ctx, r)
}

func (c *HTTPClient) DeleteApplication(ctx context.Context, appID string) (*ActionResult, error) {
	return c.action(ctx, request{endpoint: "app_delete", method: http.MethodDelete, path: appPath(appID, "delete")})
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, appID, name, avatarURL string) (*ActionResult, error) {
	r, err := jsonRequest("app_profile", http.MethodPut, appPath(appID, "profile"), map[string]string{
		"name":      name,
		"avatarURL": avatarURL,
	})
	if err != nil {
		return nil, err
	}
	return c.action(ctx, r)
}

func (c *HTTPClient) CommitFiles(ctx context.Context, appID string, archive Archive) (*ActionResult, error) {
	r, err := multipartRequest("app_commit", http.MethodPut, appPath(appID, "commit"), archive)
	if err != nil {
		return nil, err
	}
	return c.action(ctx, r)
}

func (c *HTTPClient) UploadApplication(ctx context.Context, archive Archive) (*ActionResult, error) {
	r, err := multipartRequest("upload", http.MethodPost, "/upload", archive)
	if err != nil {
		return nil, err
	}
	return c.action(ctx, r)
}

func (c *HTTPClient) AddModerator(ctx context.Context, appID, modID string, perms PermSet) (*ActionResult, error) {
	r, err := jsonRequest("team_add", http.MethodPost, appPath(appID, "team"), wireMod{ModID: modID, Perms: perms.Strings()})
	if err != nil {
		return nil, err
	}
	return c.action(ctx, r)
}

func (c *HTTPClient) EditModerator(ctx context.Context, appID, modID string, perms PermSet) (*ActionResult, error) {
	r, err := jsonRequest("team_edit", http.MethodPut, appPath(appID, "team"), wireMod{ModID: modID, Perms: perms.Strings()})
	if err != nil {
		return nil, err
	}
	return c.action(ctx, r)
}

func (c *HTTPClient) DeleteModerator(ctx context.Context, appID, modID string) (*ActionResult, error) {
	return c.action(ctx, request{endpoint: "team_delete", method: http.MethodDelete, path: appPath(appID, "team", url.PathEscape(modID))})
}
