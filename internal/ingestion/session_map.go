package ingestion

import "sync"

// chatSession links a chat id to the employee and project it belongs to,
// populated by the (external) phone-linking flow.
type chatSession struct {
	EmployeeUID string
	ProjectName string
}

// ChatSessionMap is a small, process-wide, concurrency-safe handle the
// phone-linking flow writes to and ingestion reads from.
type ChatSessionMap struct {
	mu       sync.RWMutex
	sessions map[int64]chatSession
}

// NewChatSessionMap builds an empty map.
func NewChatSessionMap() *ChatSessionMap {
	return &ChatSessionMap{sessions: make(map[int64]chatSession)}
}

// Link records that chatID belongs to employeeUID within projectName.
func (m *ChatSessionMap) Link(chatID int64, employeeUID, projectName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[chatID] = chatSession{EmployeeUID: employeeUID, ProjectName: projectName}
}

// Get returns the linked session for chatID, if any.
func (m *ChatSessionMap) Get(chatID int64) (employeeUID, projectName string, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[chatID]
	return s.EmployeeUID, s.ProjectName, ok
}

// Delete removes the link for chatID, if any.
func (m *ChatSessionMap) Delete(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
}

// ForEach calls fn for a snapshot of every linked chat session.
func (m *ChatSessionMap) ForEach(fn func(chatID int64, employeeUID, projectName string)) {
	m.mu.RLock()
	snapshot := make(map[int64]chatSession, len(m.sessions))
	for k, v := range m.sessions {
		snapshot[k] = v
	}
	m.mu.RUnlock()

	for chatID, s := range snapshot {
		fn(chatID, s.EmployeeUID, s.ProjectName)
	}
}
