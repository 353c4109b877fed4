package model

import (
	"sync"
	"testing"

	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

func TestStateManagerLifecycle(t *testing.T) {
	s := NewStateManager()
	if s.IsFitted() {
		t.Error("new state manager must not be fitted")
	}

	s.SetDimensions(8, 100)
	s.SetFitted()
	if !s.IsFitted() {
		t.Error("SetFitted not reflected")
	}
	nFeatures, nSamples := s.GetDimensions()
	if nFeatures != 8 || nSamples != 100 {
		t.Errorf("unexpected dimensions %d x %d", nSamples, nFeatures)
	}

	s.Reset()
	if s.IsFitted() {
		t.Error("Reset must clear the fitted flag")
	}
	nFeatures, nSamples = s.GetDimensions()
	if nFeatures != 0 || nSamples != 0 {
		t.Errorf("Reset must clear dimensions, got %d x %d", nSamples, nFeatures)
	}
}

func TestRequireFitted(t *testing.T) {
	s := NewStateManager()

	err := s.RequireFitted("SVC", "PredictProba")
	if err == nil {
		t.Fatal("expected NotFittedError before fitting")
	}
	var nfe *diabriskErrors.NotFittedError
	if !diabriskErrors.As(err, &nfe) {
		t.Fatalf("expected NotFittedError, got %T", err)
	}
	if nfe.ModelName != "SVC" || nfe.Method != "PredictProba" {
		t.Errorf("unexpected fields: %+v", nfe)
	}

	s.SetFitted()
	if err := s.RequireFitted("SVC", "PredictProba"); err != nil {
		t.Errorf("unexpected error after fitting: %v", err)
	}
}

func TestStateManagerConcurrentAccess(t *testing.T) {
	s := NewStateManager()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.SetFitted()
			s.SetDimensions(4, 10)
		}()
		go func() {
			defer wg.Done()
			s.IsFitted()
			s.GetDimensions()
		}()
	}
	wg.Wait()

	if !s.IsFitted() {
		t.Error("state lost under concurrent access")
	}
}
