package core

import (
	"sort"

	"github.com/samber/lo"
)

// Conn is a live connection the hub can deliver protocol lines to.
type Conn interface {
	Send(line string) error
}

// presence maps online user ids to their connection. Callers hold the hub lock.
type presence struct {
	conns map[string]Conn
}

func newPresence() *presence {
	return &presence{conns: make(map[string]Conn)}
}

func (p *presence) bind(userID string, conn Conn) {
	p.conns[userID] = conn
}

func (p *presence) unbind(userID string) bool {
	if _, ok := p.conns[userID]; !ok {
		return false
	}
	delete(p.conns, userID)
	return true
}

func (p *presence) route(userID string) (Conn, bool) {
	conn, ok := p.conns[userID]
	return conn, ok
}

// online returns the ids of all connected users, sorted.
func (p *presence) online() []string {
	ids := lo.Keys(p.conns)
	sort.Strings(ids)
	return ids
}
