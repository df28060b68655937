package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rafaeljc/bifrost/internal/experiment"
)

// Origin downloads the document over HTTP, typically from the distribution
// domain or the control plane's /api/v1/document endpoint.
type Origin struct {
	client *http.Client
	url    string
}

// NewOrigin fetches url with client (http.DefaultClient when nil).
func NewOrigin(client *http.Client, url string) *Origin {
	if client == nil {
		client = http.DefaultClient
	}
	return &Origin{client: client, url: url}
}

func (o *Origin) Name() string { return "origin" }

func (o *Origin) Fetch(ctx context.Context, path string) (experiment.SegmentationRule, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return experiment.SegmentationRule{}, experiment.FetchFailure(o.Name(), path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return experiment.SegmentationRule{}, experiment.FetchFailure(o.Name(), path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return experiment.SegmentationRule{}, experiment.MissingFailure(o.Name(), path)
	case resp.StatusCode != http.StatusOK:
		return experiment.SegmentationRule{}, experiment.FetchFailure(o.Name(), path, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return experiment.SegmentationRule{}, experiment.FetchFailure(o.Name(), path, err)
	}
	return ParseDocument(o.Name(), path, data)
}
