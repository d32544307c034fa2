package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sweepInterval is how often idle workspace sessions are collected.
const sweepInterval = 5 * time.Minute

// WorkspaceSession is one admin's active video workspace.
type WorkspaceSession struct {
	MessageID  int
	FileID     string
	FileName   string
	FileSize   int64
	Duration   int
	FilePath   string
	LastActive time.Time
}

// WorkspaceService tracks per-admin video sessions and their scratch
// files. Sessions idle past the timeout are swept together with their
// downloads.
type WorkspaceService struct {
	mu       sync.Mutex
	sessions map[int64]*WorkspaceSession
	tempDir  string
	timeout  time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewWorkspaceService(tempDir string, timeout time.Duration, log *zap.Logger) *WorkspaceService {
	return &WorkspaceService{
		sessions: make(map[int64]*WorkspaceSession),
		tempDir:  tempDir,
		timeout:  timeout,
		now:      time.Now,
		log:      log.Named("workspace"),
	}
}

// TempDir is the scratch directory for downloads and artifacts.
func (s *WorkspaceService) TempDir() string { return s.tempDir }

// Open starts a session for the admin, closing any previous one first.
func (s *WorkspaceService) Open(adminID int64, session WorkspaceSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked(adminID)
	session.LastActive = s.now()
	s.sessions[adminID] = &session
}

// Get returns a snapshot of the admin's session.
func (s *WorkspaceService) Get(adminID int64) (WorkspaceSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[adminID]
	if !ok {
		return WorkspaceSession{}, false
	}
	return *session, true
}

// Touch marks the session as active.
func (s *WorkspaceService) Touch(adminID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[adminID]; ok {
		session.LastActive = s.now()
	}
}

// SetFilePath records where the session's video was downloaded so later
// jobs reuse it.
func (s *WorkspaceService) SetFilePath(adminID int64, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[adminID]; ok {
		session.FilePath = path
		session.LastActive = s.now()
	}
}

// Close drops the admin's session and removes its cached download.
func (s *WorkspaceService) Close(adminID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked(adminID)
}

func (s *WorkspaceService) closeLocked(adminID int64) bool {
	session, ok := s.sessions[adminID]
	if !ok {
		return false
	}
	if session.FilePath != "" {
		if err := os.Remove(session.FilePath); err != nil && !os.IsNotExist(err) {
			s.log.Error("session file cleanup failed",
				zap.Int64("admin_id", adminID),
				zap.String("path", session.FilePath),
				zap.Error(err))
		}
	}
	delete(s.sessions, adminID)
	return true
}

// SweepOnce closes sessions idle past the timeout and reports which
// admins were swept.
func (s *WorkspaceService) SweepOnce(now time.Time) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var swept []int64
	for adminID, session := range s.sessions {
		if now.Sub(session.LastActive) > s.timeout {
			s.closeLocked(adminID)
			swept = append(swept, adminID)
		}
	}
	return swept
}

// Run sweeps idle sessions until ctx is done.
func (s *WorkspaceService) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			if swept := s.SweepOnce(tick); len(swept) > 0 {
				s.log.Info("swept idle workspace sessions", zap.Int64s("admin_ids", swept))
			}
		}
	}
}

// DownloadPath is where a session's source video lives on disk.
func (s *WorkspaceService) DownloadPath(messageID int) string {
	return filepath.Join(s.tempDir, fmt.Sprintf("%d.mp4", messageID))
}

// ScreenshotPath names one frame of a screenshot batch.
func (s *WorkspaceService) ScreenshotPath(index, messageID int) string {
	return filepath.Join(s.tempDir, fmt.Sprintf("ss_%d_%d.jpg", index, messageID))
}

// ClipPath names a generated clip.
func (s *WorkspaceService) ClipPath() string {
	return filepath.Join(s.tempDir, fmt.Sprintf("clip_%s.mp4", uuid.NewString()))
}
