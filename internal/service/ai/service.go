package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"noiserelay/internal/models"
)

const AudioMIMEType = "audio/wav"

// Client is the process-wide Gemini client. Files go through the genai file
// service and generation through the eino chat model wrapping the same
// client. It is never mutated after construction and is safe for concurrent use.
type Client struct {
	genai *genai.Client
	chat  *gemini.ChatModel
}

// Options tweak client construction; BaseURL is only set by tests.
type Options struct {
	BaseURL string
}

// NewClient builds the Gemini API client from an API key.
func NewClient(ctx context.Context, apiKey string, opts Options) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	chat, err := gemini.NewChatModel(ctx, &gemini.Config{Client: client})
	if err != nil {
		return nil, fmt.Errorf("create gemini chat model: %w", err)
	}
	return &Client{genai: client, chat: chat}, nil
}

// Upload sends the file at path to the provider and returns a handle for one generation call.
func (c *Client) Upload(ctx context.Context, path string) (models.Handle, error) {
	file, err := c.genai.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType: AudioMIMEType,
	})
	if err != nil {
		return models.Handle{}, err
	}
	if file == nil {
		return models.Handle{}, errors.New("provider returned no file")
	}
	mime := file.MIMEType
	if mime == "" {
		mime = AudioMIMEType
	}
	return models.Handle{Name: file.Name, URI: file.URI, MIMEType: mime}, nil
}

// Generate runs one generation call over the ordered parts and returns its text.
func (c *Client) Generate(ctx context.Context, modelName string, parts []models.Part) (string, error) {
	input, err := ToMessages(parts)
	if err != nil {
		return "", err
	}
	msg, err := c.chat.Generate(ctx, input, model.WithModel(modelName))
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// Release deletes the provider-side copy of an uploaded file.
func (c *Client) Release(ctx context.Context, h models.Handle) error {
	if h.Name == "" {
		return nil
	}
	if _, err := c.genai.Files.Delete(ctx, h.Name, nil); err != nil {
		return fmt.Errorf("delete uploaded file %s: %w", h.Name, err)
	}
	return nil
}

// ToMessages converts parts into a single user message, preserving order.
// A lone text part stays in Content; anything else becomes MultiContent with
// handles sent as provider file references.
func ToMessages(parts []models.Part) ([]*schema.Message, error) {
	if len(parts) == 0 {
		return nil, errors.New("generation request has no parts")
	}
	msg := &schema.Message{Role: schema.User}
	if len(parts) == 1 && !parts[0].IsHandle() {
		msg.Content = parts[0].Text
		return []*schema.Message{msg}, nil
	}

	msg.MultiContent = make([]schema.ChatMessagePart, 0, len(parts))
	for i, p := range parts {
		if !p.IsHandle() {
			msg.MultiContent = append(msg.MultiContent, schema.ChatMessagePart{
				Type: schema.ChatMessagePartTypeText,
				Text: p.Text,
			})
			continue
		}
		if p.Handle.URI == "" {
			return nil, fmt.Errorf("part %d: handle has no uri", i)
		}
		msg.MultiContent = append(msg.MultiContent, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeAudioURL,
			AudioURL: &schema.ChatMessageAudioURL{
				URI:      p.Handle.URI,
				MIMEType: p.Handle.MIMEType,
			},
		})
	}
	return []*schema.Message{msg}, nil
}
