// Package livechat serves the assistant over a websocket.
package livechat

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/coder/websocket"
)

// DefaultTabID is used when the client does not name its tab.
const DefaultTabID = "default"

var tabIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// SanitizeTabID returns id if it is a safe tab identifier, DefaultTabID otherwise.
func SanitizeTabID(id string) string {
	id = strings.TrimSpace(id)
	if !tabIDPattern.MatchString(id) {
		return DefaultTabID
	}
	return id
}

// ConnManager tracks one websocket per visitor tab.
type ConnManager struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewConnManager creates a new connection manager.
func NewConnManager() *ConnManager {
	return &ConnManager{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// Get returns the active connection for a visitor tab.
func (m *ConnManager) Get(visitorID, tabID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if tabs, ok := m.active[visitorID]; ok {
		return tabs[tabID]
	}
	return nil
}

// Count returns the number of open connections.
func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, tabs := range m.active {
		n += len(tabs)
	}
	return n
}

// Register adds conn for a visitor tab, closing the connection it replaces.
func (m *ConnManager) Register(visitorID, tabID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[visitorID]; !exists {
		m.active[visitorID] = make(map[string]*websocket.Conn)
	}

	if existing, exists := m.active[visitorID][tabID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "connection replaced")
	}

	m.active[visitorID][tabID] = conn
	slog.Info("Chat connection registered", "visitor_id", visitorID, "tab_id", tabID)
}

// Unregister removes conn if it is still the active one for the tab.
func (m *ConnManager) Unregister(visitorID, tabID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tabs, ok := m.active[visitorID]; ok {
		if current, exists := tabs[tabID]; exists && current == conn {
			delete(tabs, tabID)
			if len(tabs) == 0 {
				delete(m.active, visitorID)
			}
			slog.Info("Chat connection unregistered", "visitor_id", visitorID, "tab_id", tabID)
		}
	}
}

// CloseAll closes every connection, used on shutdown.
func (m *ConnManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for visitorID, tabs := range m.active {
		for _, conn := range tabs {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(m.active, visitorID)
	}
}
