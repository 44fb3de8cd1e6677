package server

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Session is the state of one authenticated connection.
type Session struct {
	connId uint32
	user   string
	host   string
	tls    bool

	mu       sync.Mutex
	userVars map[string]string
	replica  *ReplicaInfo
}

// ReplicaInfo is what a replica sent with COM_REGISTER_SLAVE.
type ReplicaInfo struct {
	ServerId uint32
	Host     string
	Port     uint16
}

func newSession(connId uint32, user, host string, tls bool) *Session {
	return &Session{
		connId:   connId,
		user:     user,
		host:     host,
		tls:      tls,
		userVars: make(map[string]string),
	}
}

func (s *Session) ConnectionId() uint32 {
	return s.connId
}

func (s *Session) User() string {
	return s.user
}

func (s *Session) Host() string {
	return s.host
}

func (s *Session) TLS() bool {
	return s.tls
}

// UserVar returns the value of @name. Names are case insensitive.
func (s *Session) UserVar(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.userVars[strings.ToLower(name)]
	return v, ok
}

func (s *Session) SetUserVar(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userVars[strings.ToLower(name)] = value
}

// Replica returns the registration of the connection, or nil.
func (s *Session) Replica() *ReplicaInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replica
}

func (s *Session) setReplica(r *ReplicaInfo) {
	s.mu.Lock()
	s.replica = r
	s.mu.Unlock()
}

// heartbeatPeriod reads the period a replica asks for in nanoseconds.
func (s *Session) heartbeatPeriod() time.Duration {
	for _, name := range []string{"source_heartbeat_period", "master_heartbeat_period"} {
		v, ok := s.UserVar(name)
		if !ok {
			continue
		}
		ns, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ns <= 0 {
			return 0
		}
		return time.Duration(ns)
	}
	return 0
}
