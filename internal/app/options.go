package service

import (
	"github.com/okian/openab/internal/domain/assign"
	"github.com/okian/openab/internal/domain/model"
	"github.com/okian/openab/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithExperiment sets the experiment served by the service.
func WithExperiment(exp model.Experiment) Option {
	return func(s *Service) {
		s.experiment = exp
	}
}

// WithMarkerPolicy sets how unknown markers are handled.
func WithMarkerPolicy(p assign.MarkerPolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithRandomSource overrides the random source used for fresh draws.
func WithRandomSource(src assign.Source) Option {
	return func(s *Service) {
		s.source = src
	}
}
