package videogen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hmngo/vidcast/internal/gateway"
)

const (
	DefaultModel        = "veo-3.0-generate-001"
	DefaultPollInterval = 10 * time.Second
	DefaultPollTimeout  = 15 * time.Minute
)

// bounded polling ran out before the remote operation finished.
// Distinct from transport and shape failures; callers typically fall back
// per segment instead of aborting the run.
var ErrPollTimeout = errors.New("video generation timed out")

// generation parameters for one clip
type Request struct {
	Prompt           string
	NegativePrompt   string
	AspectRatio      string
	Resolution       string
	PersonGeneration string
}

func (r Request) withDefaults() Request {
	if r.NegativePrompt == "" {
		r.NegativePrompt = "blurry, low quality"
	}
	if r.AspectRatio == "" {
		r.AspectRatio = "16:9"
	}
	if r.Resolution == "" {
		r.Resolution = "720p"
	}
	if r.PersonGeneration == "" {
		r.PersonGeneration = "allow_all"
	}
	return r
}

// long-running operation state as reported by the gateway
type Operation struct {
	Name     string          `json:"name"`
	Done     bool            `json:"done"`
	Error    *OperationError `json:"error,omitempty"`
	Response *operationBody  `json:"response,omitempty"`
}

type OperationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type operationBody struct {
	GenerateVideoResponse struct {
		GeneratedSamples []struct {
			Video struct {
				URI string `json:"uri"`
			} `json:"video"`
		} `json:"generatedSamples"`
	} `json:"generateVideoResponse"`
}

type Options struct {
	Model        string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// long-running video generation over the gateway's Gemini-convention
// predictLongRunning endpoints
type Client struct {
	gw           *gateway.Client
	model        string
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewClient(gw *gateway.Client, opts Options) *Client {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	return &Client{
		gw:           gw,
		model:        opts.Model,
		pollInterval: opts.PollInterval,
		pollTimeout:  opts.PollTimeout,
	}
}

type startRequest struct {
	Instances  []startInstance `json:"instances"`
	Parameters startParameters `json:"parameters"`
}

type startInstance struct {
	Prompt string `json:"prompt"`
}

type startParameters struct {
	NegativePrompt   string `json:"negativePrompt"`
	AspectRatio      string `json:"aspectRatio"`
	Resolution       string `json:"resolution"`
	PersonGeneration string `json:"personGeneration"`
}

// Start submits a generation job and returns the operation name.
func (c *Client) Start(ctx context.Context, req Request) (string, error) {
	req = req.withDefaults()

	body := startRequest{
		Instances: []startInstance{{Prompt: req.Prompt}},
		Parameters: startParameters{
			NegativePrompt:   req.NegativePrompt,
			AspectRatio:      req.AspectRatio,
			Resolution:       req.Resolution,
			PersonGeneration: req.PersonGeneration,
		},
	}

	path := fmt.Sprintf("/gemini/v1beta/models/%s:predictLongRunning", c.model)

	var op Operation
	if err := c.gw.PostJSON(ctx, path, gateway.AuthGoogle, body, &op); err != nil {
		return "", fmt.Errorf("start video generation: %w", err)
	}
	if op.Name == "" {
		return "", gateway.MissingField("name")
	}
	return op.Name, nil
}

// Status fetches the current state of an operation.
func (c *Client) Status(ctx context.Context, operationName string) (*Operation, error) {
	var op Operation
	path := "/gemini/v1beta/" + operationName
	if err := c.gw.GetJSON(ctx, path, gateway.AuthGoogle, &op); err != nil {
		return nil, fmt.Errorf("poll video operation: %w", err)
	}
	return &op, nil
}

// WaitDone polls until the operation reports done or the bounded wait runs
// out. Timeout surfaces as ErrPollTimeout and never triggers a download; a
// done operation carrying an error object fails with that error.
func (c *Client) WaitDone(ctx context.Context, operationName string) (*Operation, error) {
	deadline := time.Now().Add(c.pollTimeout)

	for time.Now().Before(deadline) {
		op, err := c.Status(ctx, operationName)
		if err != nil {
			return nil, err
		}
		if op.Done {
			if op.Error != nil {
				return nil, fmt.Errorf(
					"video generation failed: %s (code %d)",
					op.Error.Message, op.Error.Code,
				)
			}
			return op, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return nil, fmt.Errorf("operation %s: %w", operationName, ErrPollTimeout)
}

// Download extracts the file id from the completed operation's video URI and
// streams the clip through the gateway's download endpoint.
func (c *Client) Download(ctx context.Context, op *Operation, outputPath string) error {
	if op == nil || op.Response == nil ||
		len(op.Response.GenerateVideoResponse.GeneratedSamples) == 0 {
		return gateway.MissingField("response.generateVideoResponse.generatedSamples")
	}

	uri := op.Response.GenerateVideoResponse.GeneratedSamples[0].Video.URI
	if uri == "" {
		return gateway.MissingField("generatedSamples[0].video.uri")
	}

	idx := strings.Index(uri, "/files/")
	if idx < 0 {
		return fmt.Errorf("%w: video uri %q has no /files/ segment",
			gateway.ErrMalformedResponse, uri)
	}
	fileID := uri[idx+len("/files/"):]
	if cut := strings.Index(fileID, ":download"); cut >= 0 {
		fileID = fileID[:cut]
	}

	path := fmt.Sprintf("/gemini/download/v1beta/files/%s:download?alt=media", fileID)
	if err := c.gw.Download(ctx, path, gateway.AuthGoogle, outputPath); err != nil {
		return fmt.Errorf("download video: %w", err)
	}
	return nil
}

// GenerateClip runs the full start/wait/download sequence for one prompt.
func (c *Client) GenerateClip(ctx context.Context, req Request, outputPath string) error {
	name, err := c.Start(ctx, req)
	if err != nil {
		return err
	}

	op, err := c.WaitDone(ctx, name)
	if err != nil {
		return err
	}

	return c.Download(ctx, op, outputPath)
}
