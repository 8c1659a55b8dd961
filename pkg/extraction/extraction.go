// Package extraction turns an uploaded business card or document image into lead contact fields
// using a vision model.
package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukex/leadflow/pkg/llm"
	"github.com/patrickmn/go-cache"
	"github.com/xeipuuv/gojsonschema"
)

// MaxFileSize is the largest accepted upload.
const MaxFileSize = 10 << 20

// DefaultCacheTTL is how long an extraction result is reused for an identical upload.
const DefaultCacheTTL = 30 * time.Minute

// AllowedMediaTypes lists the accepted upload content types.
var AllowedMediaTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/gif",
	"application/pdf",
}

const extractionPrompt = "Extract the name, email, and phone number (including country code) " +
	"from this image. Provide the output as a JSON object with keys " +
	"'name', 'email', and 'phone' (with country code). For example: " +
	`{"name": "John Doe", "email": "john.doe@example.com", "phone": "+1234567890"}`

var resultSchema = map[string]any{
	"type":          "object",
	"minProperties": 1,
	"properties": map[string]any{
		"name":  map[string]any{"type": []any{"string", "null"}},
		"email": map[string]any{"type": []any{"string", "null"}},
		"phone": map[string]any{"type": []any{"string", "null"}},
	},
}

// Contact holds the fields read from an image.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Service extracts contacts through a vision model and caches results per upload.
type Service struct {
	client llm.Client
	model  string
	cache  *cache.Cache
	logger *slog.Logger
}

// NewService creates an extraction service using model on client.
func NewService(logger *slog.Logger, client llm.Client, model string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &Service{
		client: client,
		model:  model,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger.With("module", "extraction"),
	}
}

// Validate checks the upload before any model call.
func Validate(mediaType string, size int) error {
	if size == 0 {
		return ErrEmptyFile
	}

	if size > MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, MaxFileSize)
	}

	if !slices.Contains(AllowedMediaTypes, normalizeMediaType(mediaType)) {
		return fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mediaType)
	}

	return nil
}

// Extract reads contact fields from data.
func (s *Service) Extract(ctx context.Context, mediaType string, data []byte) (*Contact, error) {
	if err := Validate(mediaType, len(data)); err != nil {
		return nil, err
	}

	mediaType = normalizeMediaType(mediaType)
	key := cacheKey(mediaType, data)

	if cached, found := s.cache.Get(key); found {
		s.logger.DebugContext(ctx, "Extraction served from cache", "key", key)

		contact := *cached.(*Contact)

		return &contact, nil
	}

	resp, err := s.client.Chat(ctx, llm.ChatRequest{
		Model: s.model,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: extractionPrompt,
			Images:  []llm.Image{{MimeType: mediaType, Data: data}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract contact: %w", err)
	}

	contact, err := ParseContact(resp.Message.Content)
	if err != nil {
		s.logger.WarnContext(ctx, "Model returned an unusable extraction", "error", err, "reply", resp.Message.Content)

		return nil, err
	}

	stored := *contact
	s.cache.Set(key, &stored, cache.DefaultExpiration)

	return contact, nil
}

// ParseContact decodes a model reply, tolerating markdown code fences around the JSON.
func ParseContact(reply string) (*Contact, error) {
	body := stripCodeFence(reply)

	var raw any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExtraction, err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(resultSchema), gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExtraction, err)
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidExtraction, strings.Join(errors, "; "))
	}

	fields, _ := raw.(map[string]any)

	contact := &Contact{}
	contact.Name, _ = fields["name"].(string)
	contact.Email, _ = fields["email"].(string)
	contact.Phone, _ = fields["phone"].(string)

	return contact, nil
}

func stripCodeFence(reply string) string {
	body := strings.TrimSpace(reply)
	if !strings.HasPrefix(body, "```") {
		return body
	}

	body = strings.TrimSuffix(strings.TrimPrefix(body, "```"), "```")

	// drop the language tag line, e.g. ```json
	if newline := strings.IndexByte(body, '\n'); newline >= 0 && !strings.HasPrefix(strings.TrimSpace(body), "{") {
		body = body[newline+1:]
	}

	return strings.TrimSpace(body)
}

func normalizeMediaType(mediaType string) string {
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}

	return strings.ToLower(strings.TrimSpace(mediaType))
}

func cacheKey(mediaType string, data []byte) string {
	hash := sha256.New()
	hash.Write([]byte(mediaType))
	hash.Write(data)

	return hex.EncodeToString(hash.Sum(nil))
}
