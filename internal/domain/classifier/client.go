package classifier

import "context"

// Result is the classifier's best guess for an image.
type Result struct {
	SpeciesID  string  // Label id, matches plants.id
	Confidence float64 // Softmax probability in [0, 1]
}

// Client identifies a plant species from a photo.
// This keeps the registration flow independent of the model serving transport.
type Client interface {
	Classify(ctx context.Context, image []byte) (*Result, error)
}
