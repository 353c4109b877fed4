// Package model provides the core estimator abstractions shared by every
// classifier and transformer in diabrisk: thread-safe fitted-state tracking
// and the interfaces the pipeline and tuning driver program against.
package model

import (
	"sync"

	"github.com/medscreen/diabrisk/pkg/errors"
)

// StateManager tracks the fitted state of an estimator in a thread-safe
// manner. Estimators hold it by composition rather than embedding.
type StateManager struct {
	Fitted bool // Public for gob encoding
	mu     sync.RWMutex

	NFeatures int
	NSamples  int
}

// NewStateManager creates an unfitted StateManager.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the estimator has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted marks the estimator as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
}

// Reset returns the estimator to its untrained state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NFeatures = 0
	s.NSamples = 0
}

// SetDimensions records the training data shape.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// GetDimensions returns the training data shape seen during fitting.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NSamples
}

// RequireFitted returns a NotFittedError naming the model and method if the
// estimator has not been fitted yet.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(modelName, method)
	}
	return nil
}
