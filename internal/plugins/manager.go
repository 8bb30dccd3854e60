package plugins

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/craftstack/mc-server-manager/internal/config"
	"github.com/craftstack/mc-server-manager/internal/database"
	"github.com/craftstack/mc-server-manager/internal/logging"
	"github.com/craftstack/mc-server-manager/internal/modrinth"
)

type JobStatus string

const (
	StatusQueued   JobStatus = "queued"
	StatusRunning  JobStatus = "running"
	StatusFailed   JobStatus = "failed"
	StatusComplete JobStatus = "complete"
)

// Job tracks one plugin install from request to file on disk.
type Job struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	Title      string     `json:"title"`
	Status     JobStatus  `json:"status"`
	FileName   string     `json:"file_name,omitempty"`
	FileSize   int64      `json:"file_size,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// StreamEvent is pushed to job subscribers as an install progresses.
type StreamEvent struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// Fetcher is the slice of the Modrinth client the install path needs.
type Fetcher interface {
	Versions(ctx context.Context, projectID, gameVersion string) ([]modrinth.Version, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Manager runs plugin installs in the background and exposes the
// plugins directory. Installs never touch the running server; new
// jars load on the next start.
type Manager struct {
	cfg      *config.Manager
	db       *database.DB
	fetcher  Fetcher
	activity *logging.ActivityLogger

	mu       sync.Mutex
	jobs     map[string]*Job
	subs     map[string]map[chan StreamEvent]struct{}
	onResult func(JobStatus)
}

func NewManager(cfg *config.Manager, db *database.DB, fetcher Fetcher, activity *logging.ActivityLogger) *Manager {
	return &Manager{
		cfg:      cfg,
		db:       db,
		fetcher:  fetcher,
		activity: activity,
		jobs:     make(map[string]*Job),
		subs:     make(map[string]map[chan StreamEvent]struct{}),
	}
}

// OnResult registers a callback fired with each install's final
// status. Must be set before the first Install call.
func (m *Manager) OnResult(fn func(JobStatus)) {
	m.onResult = fn
}

// Directory returns a view over the currently configured plugins
// folder. Resolved per call so config edits take effect immediately.
func (m *Manager) Directory() *Directory {
	return NewDirectory(m.cfg.Minecraft().PluginsDir)
}

// Install queues a download of the named project's best-matching
// version and returns the tracking job immediately.
func (m *Manager) Install(projectID, title string) *Job {
	job := &Job{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Title:     title,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	if _, ok := m.subs[job.ID]; !ok {
		m.subs[job.ID] = make(map[chan StreamEvent]struct{})
	}
	m.mu.Unlock()

	_ = m.insertJob(job)

	go m.runInstall(job)
	return job
}

// Delete removes an installed jar and records the outcome.
func (m *Manager) Delete(name string) error {
	err := m.Directory().Delete(name)
	if m.activity != nil {
		m.activity.LogResult(logging.ActivityPluginDelete, fmt.Sprintf("Deleted plugin %s", name), err)
	}
	return err
}

func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	copied := *job
	return &copied, true
}

// History returns recent install records, newest first.
func (m *Manager) History(limit int) ([]*Job, error) {
	if m.db == nil {
		return []*Job{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := m.db.Query(`
		SELECT id, project_id, title, file_name, file_size, status, error, created_at, finished_at
		FROM plugin_installs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*Job{}
	for rows.Next() {
		job := &Job{}
		var status string
		if err := rows.Scan(&job.ID, &job.ProjectID, &job.Title, &job.FileName, &job.FileSize, &status, &job.Error, &job.CreatedAt, &job.FinishedAt); err != nil {
			continue
		}
		job.Status = JobStatus(status)
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Subscribe streams a job's progress events. The returned cancel
// function must be called when the caller stops listening.
func (m *Manager) Subscribe(jobID string) (chan StreamEvent, func()) {
	ch := make(chan StreamEvent, 64)
	m.mu.Lock()
	if _, ok := m.subs[jobID]; !ok {
		m.subs[jobID] = make(map[chan StreamEvent]struct{})
	}
	m.subs[jobID][ch] = struct{}{}
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if subs, ok := m.subs[jobID]; ok {
			if _, active := subs[ch]; active {
				delete(subs, ch)
				close(ch)
			}
		}
	}
}

// emit delivers under the mutex. Sends are non-blocking, and holding
// the lock keeps cancel from closing a channel mid-send or mutating
// the subscriber set mid-iteration.
func (m *Manager) emit(jobID string, event StreamEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for ch := range m.subs[jobID] {
		select {
		case ch <- event:
		default:
		}
	}
}

func (m *Manager) setStatus(job *Job, status JobStatus, err error) {
	now := time.Now()
	m.mu.Lock()
	job.Status = status
	if status == StatusFailed || status == StatusComplete {
		job.FinishedAt = &now
		if err != nil {
			job.Error = err.Error()
		}
	}
	m.mu.Unlock()
	m.emit(job.ID, StreamEvent{Event: "status", Data: string(status)})

	_ = m.updateJob(job)
}

func (m *Manager) runInstall(job *Job) {
	m.setStatus(job, StatusRunning, nil)

	err := m.doInstall(job)
	if err != nil {
		log.Printf("[Plugins] Install of %s failed: %v", job.ProjectID, err)
		m.setStatus(job, StatusFailed, err)
	} else {
		m.setStatus(job, StatusComplete, nil)
	}

	if m.onResult != nil {
		if err != nil {
			m.onResult(StatusFailed)
		} else {
			m.onResult(StatusComplete)
		}
	}

	if m.activity != nil {
		m.activity.LogResult(logging.ActivityPluginInstall, fmt.Sprintf("Installed plugin %s", job.Title), err)
	}
}

func (m *Manager) doInstall(job *Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	mc := m.cfg.Minecraft()

	m.emit(job.ID, StreamEvent{Event: "log", Data: fmt.Sprintf("Resolving versions for %s", job.ProjectID)})
	versions, err := m.fetcher.Versions(ctx, job.ProjectID, mc.ServerVersion)
	if err != nil {
		return err
	}

	version, ok := modrinth.PickVersion(versions, mc.ServerVersion, mc.ServerType)
	if !ok {
		return fmt.Errorf("no versions available for %s", job.ProjectID)
	}

	file, ok := modrinth.PrimaryFile(version)
	if !ok {
		return ErrNoInstallableFile
	}

	m.emit(job.ID, StreamEvent{Event: "log", Data: fmt.Sprintf("Downloading %s (%d bytes)", file.Filename, file.Size)})
	data, err := m.fetcher.Download(ctx, file.URL)
	if err != nil {
		return err
	}

	path, err := m.Directory().Write(file.Filename, data, file.Size)
	if err != nil {
		return err
	}

	m.mu.Lock()
	job.FileName = file.Filename
	job.FileSize = file.Size
	m.mu.Unlock()

	m.emit(job.ID, StreamEvent{Event: "log", Data: fmt.Sprintf("Installed %s", path)})
	return nil
}

func (m *Manager) insertJob(job *Job) error {
	if m.db == nil {
		return nil
	}
	_, err := m.db.Exec(`
		INSERT INTO plugin_installs (id, project_id, title, file_name, file_size, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.ProjectID, job.Title, job.FileName, job.FileSize, job.Status, job.Error, job.CreatedAt)
	return err
}

func (m *Manager) updateJob(job *Job) error {
	if m.db == nil {
		return nil
	}
	_, err := m.db.Exec(`
		UPDATE plugin_installs
		SET file_name = ?, file_size = ?, status = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, job.FileName, job.FileSize, job.Status, job.Error, job.FinishedAt, job.ID)
	return err
}
