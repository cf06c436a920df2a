package analysis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/floroz/accio/services/item-service/internal/domain/items"
)

var (
	ErrNoImage            = errors.New("no image provided")
	ErrUnsupportedImage   = errors.New("image must be a JPEG, PNG or WebP picture")
	ErrUnreadableResponse = errors.New("could not read item details from the image analysis")
)

var analyzableTypes = []string{"image/jpeg", "image/png", "image/webp"}

// Prompt asks the model for the upload form fields as bare JSON
var Prompt = fmt.Sprintf(`Analyze this image of a found item and extract the following information in JSON format:
{
  "itemName": "short descriptive name of the item",
  "category": "one of: %s",
  "color": "one of: %s",
  "brandName": "brand if visible, otherwise \"Unknown\""
}
Respond with the JSON object only.`,
	strings.Join(items.Categories, ", "),
	strings.Join(items.Colors, ", "),
)

// Model is an image-understanding backend
type Model interface {
	// Describe sends prompt and the image and returns the model's text reply
	Describe(ctx context.Context, prompt, mimeType string, image []byte) (string, error)
}

// Result holds suggested values for the upload form
type Result struct {
	ItemName  string `json:"itemName"`
	Category  string `json:"category"`
	Color     string `json:"color"`
	BrandName string `json:"brandName"`
}

// Service pre-fills item fields from a photo
type Service struct {
	model Model
}

// NewService creates a new analysis service
func NewService(model Model) *Service {
	return &Service{model: model}
}

// Analyze asks the model to describe image and normalizes its answer onto
// the item vocabularies
func (s *Service) Analyze(ctx context.Context, image []byte) (*Result, error) {
	if len(image) == 0 {
		return nil, ErrNoImage
	}

	mtype := mimetype.Detect(image)
	if !mimetype.EqualsAny(mtype.String(), analyzableTypes...) {
		return nil, ErrUnsupportedImage
	}

	reply, err := s.model.Describe(ctx, Prompt, mtype.String(), image)
	if err != nil {
		return nil, fmt.Errorf("image analysis failed: %w", err)
	}

	return ParseReply(reply)
}

// ParseReply extracts the JSON object from a model reply, tolerating
// markdown code fences around it
func ParseReply(reply string) (*Result, error) {
	text := strings.TrimSpace(reply)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, ErrUnreadableResponse
	}

	var res Result
	if err := json.Unmarshal([]byte(text[start:end+1]), &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableResponse, err)
	}

	res.ItemName = strings.TrimSpace(res.ItemName)
	res.BrandName = strings.TrimSpace(res.BrandName)
	res.Category = items.NormalizeCategory(res.Category)
	res.Color = items.NormalizeColor(res.Color)
	return &res, nil
}

// DecodeImage decodes base64 image data, with or without a data URL prefix
func DecodeImage(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrNoImage
	}
	if strings.HasPrefix(encoded, "data:") {
		if i := strings.Index(encoded, ","); i >= 0 {
			encoded = encoded[i+1:]
		}
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64", ErrUnsupportedImage)
	}
	if len(data) == 0 {
		return nil, ErrNoImage
	}
	return data, nil
}
