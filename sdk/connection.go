package sdk

import (
	"net/http"
	"sync"
	"time"
)

// connectionManager owns the single *http.Client shared by every attempt
// of a Client. The client is created on first use and after every close.
type connectionManager struct {
	mu       sync.RWMutex
	client   *http.Client
	config   *Config
	observer Observer
}

func newConnectionManager(config *Config) *connectionManager {
	return &connectionManager{
		config:   config,
		observer: config.Observer,
	}
}

// acquire returns the shared client, creating it if none exists.
func (m *connectionManager) acquire() *http.Client {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client != nil {
		return client
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		m.client = m.newHTTPClient()
		m.observer.OnConnectionCreated(m.config.BaseURL)
	}
	return m.client
}

func (m *connectionManager) newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        m.config.TransportConfig.MaxIdleConns,
		MaxConnsPerHost:     m.config.TransportConfig.MaxConnsPerHost,
		IdleConnTimeout:     m.config.TransportConfig.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   m.config.Timeout,
	}
}

// active reports whether a client currently exists.
func (m *connectionManager) active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// close releases idle connections and drops the client. In-flight requests
// keep the client they already acquired. Safe to call repeatedly.
func (m *connectionManager) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		m.client.CloseIdleConnections()
		m.client = nil
	}
	return nil
}
