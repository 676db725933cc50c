package requests

import (
	"github.com/address-resolver/app/models"
)

// MaxBatchSize caps synchronous batches and job submissions.
const MaxBatchSize = 20000

// AddressInput is one address as sent by clients.
type AddressInput struct {
	Text        string           `json:"text" binding:"required"`
	Coordinates *models.GeoPoint `json:"coordinates,omitempty"`
}

func (a AddressInput) Raw() models.RawInput {
	return models.RawInput{Text: a.Text, Coordinates: a.Coordinates}
}

// ResolveOptions tune a request.
type ResolveOptions struct {
	UseCache bool `json:"use_cache,omitempty"`
	// TopK trims the returned candidates; zero keeps the configured amount.
	TopK int `json:"top_k,omitempty" binding:"omitempty,min=1,max=50"`
}

// ResolveRequest resolves a single address.
type ResolveRequest struct {
	Address AddressInput   `json:"address" binding:"required"`
	Options ResolveOptions `json:"options,omitempty"`
}

// BatchRequest carries many addresses, for sync batches and jobs.
type BatchRequest struct {
	Addresses []AddressInput `json:"addresses" binding:"required,min=1,max=20000,dive"`
}

func (b BatchRequest) Raw() []models.RawInput {
	out := make([]models.RawInput, len(b.Addresses))
	for i, a := range b.Addresses {
		out[i] = a.Raw()
	}
	return out
}

// CompareRequest compares two addresses.
type CompareRequest struct {
	First  AddressInput `json:"first" binding:"required"`
	Second AddressInput `json:"second" binding:"required"`
}

// ClusterRequest groups duplicate addresses.
type ClusterRequest struct {
	Addresses []AddressInput `json:"addresses" binding:"required,min=1,max=5000,dive"`
}

func (c ClusterRequest) Raw() []models.RawInput {
	return BatchRequest{Addresses: c.Addresses}.Raw()
}

// ValidateRequest checks already parsed components against the hierarchy.
type ValidateRequest struct {
	Components  map[string]string `json:"components" binding:"required"`
	Coordinates *models.GeoPoint  `json:"coordinates,omitempty"`
}
