package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hmngo/vidcast/internal/gateway"
)

const (
	DefaultModel     = "imagen-4"
	DefaultChatModel = "gemini-2.5-flash-image-preview"
)

// parameters for the dedicated generation endpoint
type Request struct {
	Prompt      string
	Model       string
	Count       int
	Size        string // e.g. "1024x1024"; ignored when AspectRatio is set
	AspectRatio string // e.g. "16:9"
}

// reply of the dedicated endpoint
type Response struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// First decodes the first generated image.
func (r *Response) First() ([]byte, error) {
	if len(r.Data) == 0 {
		return nil, gateway.MissingField("data")
	}
	if r.Data[0].B64JSON == "" {
		return nil, gateway.MissingField("data[0].b64_json")
	}
	img, err := base64.StdEncoding.DecodeString(r.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("%w: b64_json is not valid base64: %v",
			gateway.ErrMalformedResponse, err)
	}
	return img, nil
}

// The gateway accepts two request shapes on /images/generations depending on
// which upstream convention it is routing to. Generate tries them in this
// fixed order and moves on after the first transport-level failure.
type requestShape struct {
	convention string
	body       func(Request) any
}

type geminiShapeBody struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	N           int    `json:"n"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Size        string `json:"size,omitempty"`
}

type openaiShapeBody struct {
	Model     string            `json:"model"`
	Prompt    string            `json:"prompt"`
	N         string            `json:"n"`
	ExtraBody map[string]string `json:"extra_body"`
}

var requestShapes = []requestShape{
	{
		convention: "gemini",
		body: func(req Request) any {
			body := geminiShapeBody{
				Prompt: req.Prompt,
				Model:  req.Model,
				N:      req.Count,
			}
			if req.AspectRatio != "" {
				body.AspectRatio = req.AspectRatio
			} else if req.Size != "" {
				body.Size = req.Size
			}
			return body
		},
	},
	{
		convention: "openai",
		body: func(req Request) any {
			extra := map[string]string{}
			if req.AspectRatio != "" {
				extra["aspect_ratio"] = req.AspectRatio
			} else if req.Size != "" {
				extra["size"] = req.Size
			}
			return openaiShapeBody{
				Model:     req.Model,
				Prompt:    req.Prompt,
				N:         strconv.Itoa(req.Count),
				ExtraBody: extra,
			}
		},
	},
}

// image generation over the gateway's bearer-auth endpoints
type Client struct {
	gw *gateway.Client
}

func NewClient(gw *gateway.Client) *Client {
	return &Client{gw: gw}
}

// Generate calls the dedicated endpoint. A transport failure on the first
// request shape triggers exactly one retry with the alternate shape; a
// malformed 2xx reply fails immediately.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		req.Model = DefaultModel
	}
	if req.Count <= 0 {
		req.Count = 1
	}

	var firstErr error
	for _, shape := range requestShapes {
		var resp Response
		err := c.gw.PostJSON(
			ctx,
			"/images/generations",
			gateway.AuthBearer,
			shape.body(req),
			&resp,
		)
		if err == nil {
			return &resp, nil
		}
		if errors.Is(err, gateway.ErrMalformedResponse) {
			return nil, fmt.Errorf("image generation failed: %w", err)
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("%s shape: %w", shape.convention, err)
			continue
		}
		return nil, fmt.Errorf(
			"image generation failed with both request shapes: %v; %s shape: %w",
			firstErr, shape.convention, err,
		)
	}
	return nil, fmt.Errorf("image generation failed: %w", firstErr)
}

// GenerateToFile generates via the dedicated endpoint and persists the
// first image.
func (c *Client) GenerateToFile(
	ctx context.Context,
	req Request,
	outputPath string,
) error {
	resp, err := c.Generate(ctx, req)
	if err != nil {
		return err
	}
	img, err := resp.First()
	if err != nil {
		return err
	}
	return writeImage(outputPath, img)
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Images []struct {
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateViaChat asks a multimodal chat model for an image. The reply
// embeds it as a data URL; the base64 payload follows the first comma.
func (c *Client) GenerateViaChat(
	ctx context.Context,
	prompt, model string,
) ([]byte, error) {
	if model == "" {
		model = DefaultChatModel
	}

	req := chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}

	var resp chatResponse
	if err := c.gw.PostJSON(ctx, "/chat/completions", gateway.AuthBearer, req, &resp); err != nil {
		return nil, fmt.Errorf("chat image generation failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, gateway.MissingField("choices")
	}
	images := resp.Choices[0].Message.Images
	if len(images) == 0 {
		return nil, gateway.MissingField("choices[0].message.images")
	}
	imageURL := images[0].ImageURL.URL
	if imageURL == "" {
		return nil, gateway.MissingField("images[0].image_url.url")
	}

	encoded := imageURL
	if idx := strings.Index(imageURL, ","); idx >= 0 {
		encoded = imageURL[idx+1:]
	}

	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: image data is not valid base64: %v",
			gateway.ErrMalformedResponse, err)
	}
	return img, nil
}

// GenerateChatToFile generates via the chat endpoint and persists the image.
func (c *Client) GenerateChatToFile(
	ctx context.Context,
	prompt, model, outputPath string,
) error {
	img, err := c.GenerateViaChat(ctx, prompt, model)
	if err != nil {
		return err
	}
	return writeImage(outputPath, img)
}

// AntiCache appends a random numeric token so repeated prompts defeat
// response caching on the remote side.
func AntiCache(prompt string) string {
	return fmt.Sprintf("%s, %d", prompt, rand.Intn(10000)+1)
}

func writeImage(path string, img []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, img, 0644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}
