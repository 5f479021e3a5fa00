package backend

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// GeneratedImage is the asset written to disk for an image-generation
// command.
type GeneratedImage struct {
	FileName  string
	Path      string
	SizeBytes int64
}

// ImageGenerator produces images on request and persists them under the
// generated-assets directory.
type ImageGenerator struct {
	client *openai.Client
	model  string
	dir    string
	logger *zap.Logger
}

func NewImageGenerator(apiKey, model, dir string, logger *zap.Logger) *ImageGenerator {
	if model == "" {
		model = openai.CreateImageModelDallE3
	}
	return &ImageGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
		dir:    dir,
		logger: logger,
	}
}

func (g *ImageGenerator) Generate(ctx context.Context, prompt string) (*GeneratedImage, error) {
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          g.model,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("error generating image: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("image backend returned no data")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("error decoding generated image: %v", err)
	}

	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating image directory: %v", err)
	}

	fileName := uuid.New().String() + ".png"
	path := filepath.Join(g.dir, fileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("error saving generated image: %v", err)
	}

	g.logger.Info("Generated image",
		zap.String("file", fileName),
		zap.Int("bytes", len(data)))

	return &GeneratedImage{
		FileName:  fileName,
		Path:      path,
		SizeBytes: int64(len(data)),
	}, nil
}
