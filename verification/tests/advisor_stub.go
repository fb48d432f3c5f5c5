package tests

import (
	"context"
	"errors"
	"sync"

	"throttle_platform/verification/advisory"
)

// AdvisorStub returns a scripted verdict, or fails when no verdict is set.
type AdvisorStub struct {
	mu      sync.Mutex
	verdict *advisory.Verdict
	calls   int
}

func newAdvisorStub() *AdvisorStub {
	return &AdvisorStub{}
}

func (s *AdvisorStub) SetVerdict(verdict advisory.Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdict = &verdict
}

func (s *AdvisorStub) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdict = nil
}

func (s *AdvisorStub) Review(ctx context.Context, vehicleName, imageUrl string) (advisory.Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.verdict == nil {
		return advisory.Verdict{}, errors.New("advisory service unavailable")
	}
	return *s.verdict, nil
}

func (s *AdvisorStub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
