package core

import "maneuver-service/internal/types"

// handleStartRequest handles "start" commands from Redis
func (s *TestSystem) handleStartRequest(test types.Test) error {
	s.logger.Debugf("Handling start request: %q", test)
	s.RequestStart(test)
	return nil
}

// handleAbortRequest handles "abort" commands from Redis
func (s *TestSystem) handleAbortRequest() error {
	s.logger.Debugf("Handling abort request")
	s.RequestAbort()
	return nil
}
