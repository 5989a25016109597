package sparql

import (
	"errors"
	"fmt"
)

// Config describes a SPARQL endpoint with its Graph Store dataset.
type Config struct {
	QueryURL    string
	DatasetURL  string
	ParamStyle  bool
	PostQueries bool
}

func (c *Config) Validate() error {
	if c.QueryURL == "" {
		return errors.New("property QueryURL is required")
	}
	if c.DatasetURL == "" {
		return errors.New("property DatasetURL is required")
	}
	return nil
}

// Client combines a query client and a patchable Graph Store on one Session.
type Client struct {
	*QueryClient
	*PatchableGraphStore
}

func NewClient(session *Session, config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	qc, err := NewQueryClient(session, config.QueryURL, config.PostQueries)
	if err != nil {
		return nil, err
	}
	gs, err := NewGraphStore(session, config.DatasetURL, config.ParamStyle)
	if err != nil {
		return nil, err
	}
	return &Client{
		QueryClient:         qc,
		PatchableGraphStore: NewPatchableGraphStore(gs),
	}, nil
}
