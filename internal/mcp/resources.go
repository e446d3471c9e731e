package mcp

import (
	"context"
	"path"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memmcp/memmcp/internal/errors"
	"github.com/memmcp/memmcp/internal/files"
)

const (
	mainResourceURI     = "memory://main"
	fileResourcePrefix  = "memory://file/"
	markdownMIMEType    = "text/markdown"
	fileURITemplate     = "memory://file/{+path}"
	maxResourceBytes    = 1024 * 1024
	resourceDescription = "Markdown memory file"
)

// registerResources exposes main.md and every tracked file as MCP
// resources.
func (s *Server) registerResources() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "main",
			URI:         mainResourceURI,
			Description: "The main memory index: file index, goals, tasks, plans, and recent notes",
			MIMEType:    markdownMIMEType,
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.readFileResource(ctx, mainResourceURI, files.MainFile)
		},
	)

	s.mcp.AddResourceTemplate(
		&mcp.ResourceTemplate{
			Name:        "file",
			URITemplate: fileURITemplate,
			Description: resourceDescription,
			MIMEType:    markdownMIMEType,
		},
		func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			rel, err := filePathFromURI(req.Params.URI)
			if err != nil {
				return nil, err
			}
			return s.readFileResource(ctx, req.Params.URI, rel)
		},
	)
}

// readFileResource loads one memory file as resource contents.
func (s *Server) readFileResource(ctx context.Context, uri, rel string) (*mcp.ReadResourceResult, error) {
	content, err := s.manager.Read(ctx, rel)
	if err != nil {
		return nil, err
	}
	if len(content) > maxResourceBytes {
		return nil, errors.Newf(errors.KindInvalidArgument,
			"file too large for resource read: %d bytes (max %d)", len(content), maxResourceBytes)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: markdownMIMEType,
				Text:     content,
			},
		},
	}, nil
}

// filePathFromURI extracts and validates the relative path of a
// memory://file/ URI. Traversal and absolute paths are rejected.
func filePathFromURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, fileResourcePrefix) {
		return "", errors.Newf(errors.KindInvalidArgument, "unsupported resource URI %q", uri)
	}
	rel := strings.TrimPrefix(uri, fileResourcePrefix)
	if rel == "" {
		return "", errors.New(errors.KindInvalidArgument, "resource URI has no file path")
	}
	clean := path.Clean(rel)
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.Newf(errors.KindInvalidArgument, "invalid file path %q", rel)
	}
	return clean, nil
}
