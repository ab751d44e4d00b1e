package toolregistry

import (
	"context"
	"fmt"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/SimbaBuilds/NL-To-Automation/pkg/logger"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Client is a resty-backed Registry that speaks to an out-of-process
// tool-registry service over HTTP RPC.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// NewClient builds a Client pointed at baseURL (the tool registry's RPC
// endpoint). The resty client is shared across calls for connection reuse.
func NewClient(baseURL string) *Client {
	return &Client{http: resty.New().SetBaseURL(baseURL)}
}

// NewRateLimitedClient builds a Client like NewClient but caps outbound
// calls to limit requests per period, with burst equal to limit, so a
// misbehaving automation can't hammer the tool registry.
func NewRateLimitedClient(baseURL string, limit int, period time.Duration) *Client {
	c := NewClient(baseURL)
	if limit > 0 && period > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(limit)/period.Seconds()), limit)
	}
	return c
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

type getByNameResponse struct {
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	Tags             []string       `json:"tags"`
	ParametersSchema map[string]any `json:"parameters_schema"`
	ReturnsSchema    map[string]any `json:"returns_schema"`
}

func (c *Client) GetByName(ctx context.Context, name string) (Descriptor, error) {
	if err := c.wait(ctx); err != nil {
		return Descriptor{}, fmt.Errorf("tool registry lookup %q: %w", name, err)
	}
	var out getByNameResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetPathParam("name", name).
		Get("/tools/{name}")
	if err != nil {
		return Descriptor{}, fmt.Errorf("tool registry lookup %q: %w", name, err)
	}
	if resp.IsError() {
		return Descriptor{}, &Error{Class: classifyStatus(resp.StatusCode()), Tool: name, Err: fmt.Errorf("tool registry lookup %q: status %d", name, resp.StatusCode())}
	}
	return Descriptor{
		Name:             out.Name,
		Description:      out.Description,
		Tags:             out.Tags,
		ParametersSchema: out.ParametersSchema,
		ReturnsSchema:    out.ReturnsSchema,
	}, nil
}

type executeRequest struct {
	Params  map[string]any `json:"params"`
	OwnerID string         `json:"owner_id"`
}

type executeResponse struct {
	Value      any    `json:"value"`
	ErrorClass string `json:"error_class,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (c *Client) Execute(
	ctx context.Context,
	name string,
	params map[string]any,
	ownerID core.ID,
	opts ExecuteOptions,
) (any, error) {
	log := logger.FromContext(ctx).With("tool", name, "owner_id", ownerID)
	if err := c.wait(ctx); err != nil {
		return nil, &Error{Class: ErrorClassTransient, Tool: name, Err: fmt.Errorf("execute %q: rate limit wait: %w", name, err)}
	}
	req := c.http.R().
		SetContext(ctx).
		SetBody(executeRequest{Params: params, OwnerID: ownerID.String()}).
		SetPathParam("name", name)
	if opts.Timeout > 0 {
		req.SetHeader("X-Timeout-Ms", fmt.Sprintf("%d", opts.Timeout.Milliseconds()))
	}
	var out executeResponse
	resp, err := req.SetResult(&out).Post("/tools/{name}/execute")
	if err != nil {
		log.Debug("tool execute transport error", "error", err)
		return nil, &Error{Class: ErrorClassTransient, Tool: name, Err: fmt.Errorf("execute %q: %w", name, err)}
	}
	if resp.IsError() || out.Error != "" {
		class := ErrorClass(out.ErrorClass)
		if class == "" {
			class = classifyStatus(resp.StatusCode())
		}
		msg := out.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode())
		}
		return nil, &Error{Class: class, Tool: name, Err: fmt.Errorf("execute %q: %s", name, msg)}
	}
	return out.Value, nil
}

func classifyStatus(status int) ErrorClass {
	switch {
	case status == 401 || status == 403:
		return ErrorClassAuth
	case status == 429:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassTransient
	default:
		return ErrorClassPermanent
	}
}
