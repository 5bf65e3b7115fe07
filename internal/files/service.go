package files

import (
	"os"

	"upload-server-go/internal/observability"
	"upload-server-go/internal/workspace"
)

const parentDirMode os.FileMode = 0o755

// ServiceOptions configures a Service.
type ServiceOptions struct {
	FileMode      os.FileMode
	CreateParents bool
	Metrics       *observability.Metrics
}

// Service resolves upload paths and writes their contents.
type Service struct {
	resolver      *workspace.Resolver
	writer        *Writer
	metrics       *observability.Metrics
	createParents bool
}

// NewService creates an upload service bound to resolver's storage root.
func NewService(resolver *workspace.Resolver, opts ServiceOptions) *Service {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	return &Service{
		resolver:      resolver,
		writer:        NewWriter(opts.FileMode),
		metrics:       metrics,
		createParents: opts.CreateParents,
	}
}

// Resolver returns the path resolver used by the service.
func (s *Service) Resolver() *workspace.Resolver {
	return s.resolver
}

// Metrics returns the service counters.
func (s *Service) Metrics() *observability.Metrics {
	return s.metrics
}

// Upload stores req.Contents at req.Path under the storage root.
func (s *Service) Upload(req UploadRequest) (UploadResult, error) {
	s.metrics.IncCounter(observability.UploadsTotal)

	target, err := s.resolver.Resolve(req.Path)
	if err != nil {
		s.metrics.IncCounter(observability.UploadsRejected)
		return UploadResult{}, err
	}

	if s.createParents {
		if err := s.resolver.EnsureParent(target, parentDirMode); err != nil {
			if workspace.IsPathError(err) {
				s.metrics.IncCounter(observability.UploadsRejected)
				return UploadResult{}, err
			}
			s.metrics.IncCounter(observability.UploadsFailed)
			return UploadResult{}, classify("create_parents", target.String(), err)
		}
	}

	contents := []byte(req.Contents)
	if err := s.writer.Write(target, contents); err != nil {
		s.metrics.IncCounter(observability.UploadsFailed)
		return UploadResult{}, err
	}

	s.metrics.IncCounter(observability.UploadsSucceeded)
	s.metrics.Add(observability.BytesWritten, int64(len(contents)))
	return UploadResult{Path: target.Rel(), Size: len(contents)}, nil
}
