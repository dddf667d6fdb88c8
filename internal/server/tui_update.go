// ABOUTME: TUI update helpers for server
// ABOUTME: Functions to send server state updates to TUI
package server

import "time"

// updateTUI sends current server state to TUI
func (s *Server) updateTUI() {
	if s.tui == nil {
		return
	}

	addr := ""
	if s.listener != nil {
		addr = s.listener.Addr().String()
	}

	s.tui.Update(ServerStatus{
		Name:     s.config.Name,
		Addr:     addr,
		Uptime:   time.Since(s.startTime),
		Sessions: s.Sessions(),
	})
}
