package wskit

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/fgrzl/claims"
	"github.com/google/uuid"
)

const (
	ScopeAllHosts = "obskit::*"
	ScopePrefix   = "obskit::"
)

func NewClientMuxerSession() MuxerSession {
	return &muxerSession{allowAll: true}
}

func NewServerMuxerSession(principal claims.Principal) (MuxerSession, error) {
	allowedHosts := make(map[uuid.UUID]struct{})

	for _, scope := range principal.Scopes() {
		if scope == ScopeAllHosts {
			return &muxerSession{allowAll: true}, nil
		}

		if strings.HasPrefix(scope, ScopePrefix) {
			raw := strings.TrimPrefix(scope, ScopePrefix)
			id, err := uuid.Parse(raw)
			if err != nil {
				slog.Warn("ignoring invalid host scope", "scope", scope, "error", err)
				continue
			}
			allowedHosts[id] = struct{}{}
		}
	}

	if len(allowedHosts) == 0 {
		return nil, fmt.Errorf("invalid scope: expected %q or %q{hostID}", ScopeAllHosts, ScopePrefix)
	}

	return &muxerSession{
		allowAll:     false,
		allowedHosts: allowedHosts,
	}, nil
}

type MuxerSession interface {
	CanAccessHost(hostID uuid.UUID) bool
	AllowedHosts() []uuid.UUID
	AllowAllHosts() bool
}

type muxerSession struct {
	allowAll     bool
	allowedHosts map[uuid.UUID]struct{}
}

func (s *muxerSession) CanAccessHost(hostID uuid.UUID) bool {
	if s.allowAll {
		return true
	}
	_, ok := s.allowedHosts[hostID]
	return ok
}

func (s *muxerSession) AllowedHosts() []uuid.UUID {
	if s.allowAll {
		return nil // semantically means all
	}
	ids := make([]uuid.UUID, 0, len(s.allowedHosts))
	for id := range s.allowedHosts {
		ids = append(ids, id)
	}
	return ids
}

func (s *muxerSession) AllowAllHosts() bool {
	return s.allowAll
}
