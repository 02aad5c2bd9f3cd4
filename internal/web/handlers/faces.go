package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/labface/internal/encoder"
	"github.com/kozaktomas/labface/internal/imagesource"
)

// errEncoder marks failures of the external face encoder.
var errEncoder = errors.New("face encoder failed")

// errMissingInput is returned when a request names neither a vector nor an image.
var errMissingInput = errors.New("either vector, image_url or image_data is required")

// faceInput is the part of a request that identifies a face: a ready vector or an image.
type faceInput struct {
	Vector    []float32 `json:"vector,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	ImageData string    `json:"image_data,omitempty"`
}

// faceSource resolves request inputs into embeddings.
type faceSource struct {
	encoder FaceEncoder
	fetcher ImageFetcher
}

// resolve returns the query vector for the input, encoding the image when no vector was sent.
// A vector takes precedence over image_url, which takes precedence over image_data.
func (s faceSource) resolve(ctx context.Context, in faceInput) ([]float32, error) {
	if in.Vector != nil {
		return in.Vector, nil
	}

	var image []byte
	var err error
	switch {
	case in.ImageURL != "":
		if s.fetcher == nil {
			return nil, fmt.Errorf("%w: image_url is not supported", imagesource.ErrInvalidSource)
		}
		image, err = s.fetcher.Fetch(ctx, in.ImageURL)
	case in.ImageData != "":
		image, err = imagesource.DecodeBase64(in.ImageData)
	default:
		return nil, errMissingInput
	}
	if err != nil {
		return nil, err
	}

	if s.encoder == nil {
		return nil, fmt.Errorf("%w: no encoder configured", errEncoder)
	}
	vec, err := s.encoder.EncodeFace(ctx, image)
	if err != nil {
		if errors.Is(err, encoder.ErrNoFace) || errors.Is(err, encoder.ErrInvalidImage) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errEncoder, err)
	}
	return vec, nil
}
