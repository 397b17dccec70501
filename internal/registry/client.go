package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"gopkg.in/resty.v1"

	"barcoder/pkg/domain"
)

// ErrAuth is returned when the registry rejects the API key.
var ErrAuth = errors.New("registry authentication failed")

// Client talks to the registry JSON API.
type Client struct {
	APIKey  string
	BaseURL string

	http *resty.Client
}

var _ Registry = (*Client)(nil)

// NewClient builds a client for baseURL. timeout bounds every request; zero keeps resty's default.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	rc := resty.New().SetHostURL(strings.TrimRight(baseURL, "/"))
	if timeout > 0 {
		rc.SetTimeout(timeout)
	}
	return &Client{APIKey: apiKey, BaseURL: baseURL, http: rc}
}

func (c *Client) r(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx).SetHeader("Accept", "application/json")
	if c.APIKey != "" {
		req.SetAuthToken(c.APIKey)
	}
	return req
}

func (c *Client) get(ctx context.Context, result any, query map[string]string, paths ...string) error {
	p := join(paths...)
	resp, err := c.r(ctx).SetQueryParams(query).Get(p)
	if err := c.getAPIError(p, resp, err); err != nil {
		return err
	}
	return decode(p, resp, result)
}

func (c *Client) post(ctx context.Context, result, body any, paths ...string) error {
	p := join(paths...)
	resp, err := c.r(ctx).SetHeader("Content-Type", "application/json").SetBody(body).Post(p)
	if err := c.getAPIError(p, resp, err); err != nil {
		return err
	}
	return decode(p, resp, result)
}

func decode(p string, resp *resty.Response, result any) error {
	if err := json.Unmarshal(resp.Body(), result); err != nil {
		return fmt.Errorf("registry '%s': decode response: %w", p, err)
	}
	return nil
}

func (c *Client) getAPIError(p string, resp *resty.Response, err error) error {
	switch {
	case err != nil:
		return fmt.Errorf("registry '%s': %w", p, err)
	case resp.StatusCode() == http.StatusUnauthorized:
		return ErrAuth
	case resp.StatusCode() == http.StatusNotFound:
		return domain.ErrNotFound{Entity: "registry path", ID: p}
	case resp.StatusCode() > 299:
		return toErrorFromResponse(p, resp)
	default:
		return nil
	}
}

func toErrorFromResponse(p string, resp *resty.Response) error {
	var er struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &er); err != nil {
		return fmt.Errorf("registry '%s' (HTTP Status: %d) - unable to parse json error response: %v", p, resp.StatusCode(), err)
	}
	return fmt.Errorf("registry '%s' (HTTP Status: %d) - %s", p, resp.StatusCode(), er.Error)
}

func join(paths ...string) string {
	escaped := make([]string, 0, len(paths))
	for _, p := range paths {
		escaped = append(escaped, url.PathEscape(p))
	}
	return "/" + strings.Join(escaped, "/")
}

func (c *Client) UserSpaces(ctx context.Context, user string) ([]string, error) {
	var out struct {
		Spaces []string `json:"spaces"`
	}
	if err := c.get(ctx, &out, nil, "users", user, "spaces"); err != nil {
		return nil, err
	}
	return out.Spaces, nil
}

func (c *Client) IsAdmin(ctx context.Context, user string) (bool, error) {
	var out struct {
		Admin bool `json:"admin"`
	}
	if err := c.get(ctx, &out, nil, "users", user); err != nil {
		return false, err
	}
	return out.Admin, nil
}

func (c *Client) ProjectsOfSpace(ctx context.Context, space string) ([]domain.Project, error) {
	var out []domain.Project
	if err := c.get(ctx, &out, nil, "spaces", space, "projects"); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Space == "" {
			out[i].Space = space
		}
		if out[i].Identifier == "" {
			out[i].Identifier = domain.ProjectIdentifier(space, out[i].Code)
		}
	}
	return out, nil
}

func (c *Client) ExperimentsOfProject(ctx context.Context, project string) ([]domain.Experiment, error) {
	var out []domain.Experiment
	if err := c.get(ctx, &out, map[string]string{"project": project}, "experiments"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Experiment(ctx context.Context, identifier string) (domain.Experiment, error) {
	var out []domain.Experiment
	if err := c.get(ctx, &out, map[string]string{"identifier": identifier}, "experiments"); err != nil {
		return domain.Experiment{}, err
	}
	if len(out) == 0 {
		return domain.Experiment{}, domain.ErrNotFound{Entity: "experiment", ID: identifier}
	}
	return out[0], nil
}

// wireSample is the registry JSON form of a sample. Registration dates
// arrive in several layouts and are parsed leniently.
type wireSample struct {
	Code             string            `json:"code"`
	Type             string            `json:"type"`
	Properties       map[string]string `json:"properties"`
	Factors          []domain.Factor   `json:"factors"`
	Parents          []string          `json:"parents"`
	RegistrationDate string            `json:"registration_date"`
	Experiment       string            `json:"experiment"`
}

func (w wireSample) record() (domain.SampleRecord, error) {
	rec := domain.SampleRecord{
		Code:         w.Code,
		Type:         domain.ParseSampleType(w.Type),
		Properties:   w.Properties,
		Factors:      w.Factors,
		Parents:      w.Parents,
		ExperimentID: w.Experiment,
	}
	if w.RegistrationDate != "" {
		t, err := dateparse.ParseAny(w.RegistrationDate)
		if err != nil {
			return rec, fmt.Errorf("sample %s: registration date %q: %w", w.Code, w.RegistrationDate, err)
		}
		rec.RegistrationDate = t
	}
	return rec, nil
}

func (c *Client) SamplesOfProject(ctx context.Context, project string) ([]domain.SampleRecord, error) {
	var wire []wireSample
	if err := c.get(ctx, &wire, map[string]string{"project": project, "with": "parents"}, "samples"); err != nil {
		return nil, err
	}
	out := make([]domain.SampleRecord, 0, len(wire))
	for _, w := range wire {
		rec, err := w.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Client) ParentMap(ctx context.Context, codes []string) (map[string][]string, error) {
	out := make(map[string][]string)
	if len(codes) == 0 {
		return out, nil
	}
	body := map[string][]string{"codes": codes}
	if err := c.post(ctx, &out, body, "samples", "parents"); err != nil {
		return nil, err
	}
	return out, nil
}
