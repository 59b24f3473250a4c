package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// EntryURIPrefix addresses a single entry by id.
	EntryURIPrefix      = "amanlex://entries/"
	entryURITemplate    = EntryURIPrefix + "{entry_id}"
	queryMetricsURI     = "amanlex://query_metrics"
	markdownMIMEType    = "text/markdown"
	jsonMIMEType        = "application/json"
)

func (s *Server) registerResources() {
	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "entry",
		URITemplate: entryURITemplate,
		Description: "Full text, elements and penalties of one knowledge entry",
		MIMEType:    markdownMIMEType,
	}, s.readEntry)

	if s.metrics != nil {
		s.mcp.AddResource(&mcp.Resource{
			Name:        "query_metrics",
			URI:         queryMetricsURI,
			Description: "Session query telemetry: outcomes, refusals, latency",
			MIMEType:    jsonMIMEType,
		}, s.readQueryMetrics)
	}
}

func (s *Server) readEntry(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	id, ok := strings.CutPrefix(uri, EntryURIPrefix)
	if !ok || id == "" {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	c := s.currentCorpus()
	if c == nil {
		return nil, MapError(ErrCorpusNotLoaded)
	}
	e, ok := c.Get(id)
	if !ok {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: markdownMIMEType,
			Text:     FormatEntry(e),
		}},
	}, nil
}

func (s *Server) readQueryMetrics(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(s.metrics.Snapshot(), "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      queryMetricsURI,
			MIMEType: jsonMIMEType,
			Text:     string(content),
		}},
	}, nil
}
