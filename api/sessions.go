package api

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"tasksync/board"
)

// Sessions keeps one live board per signed-in user. Boards subscribe under
// the registry's context, so they stop when it ends.
type Sessions struct {
	ctx      context.Context
	newBoard func() *board.Board
	logger   log.FieldLogger

	mu     sync.Mutex
	boards map[string]*session
}

// session is one user's board. ready is closed once the board has
// subscribed or failed to.
type session struct {
	ready chan struct{}
	board *board.Board
	err   error
}

func NewSessions(ctx context.Context, newBoard func() *board.Board, logger log.FieldLogger) *Sessions {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Sessions{ctx: ctx, newBoard: newBoard, logger: logger, boards: make(map[string]*session)}
}

// Acquire returns the board for userID, starting it on first use. Starting
// one user's board does not hold up requests for other users.
func (s *Sessions) Acquire(userID string) (*board.Board, error) {
	s.mu.Lock()
	if sess, ok := s.boards[userID]; ok {
		s.mu.Unlock()
		<-sess.ready
		return sess.board, sess.err
	}
	sess := &session{ready: make(chan struct{})}
	s.boards[userID] = sess
	s.mu.Unlock()

	b := s.newBoard()
	if err := b.SetUser(s.ctx, userID); err != nil {
		b.Close()
		sess.err = err
		s.mu.Lock()
		if s.boards[userID] == sess {
			delete(s.boards, userID)
		}
		s.mu.Unlock()
		close(sess.ready)
		return nil, err
	}
	sess.board = b
	close(sess.ready)
	s.logger.WithField("user", userID).Info("session started")
	return b, nil
}

// Release signs userID out and drops its board.
func (s *Sessions) Release(userID string) {
	s.mu.Lock()
	sess, ok := s.boards[userID]
	delete(s.boards, userID)
	s.mu.Unlock()
	if !ok {
		return
	}
	<-sess.ready
	if sess.board == nil {
		return
	}
	sess.board.Logout()
	sess.board.Close()
	s.logger.WithField("user", userID).Info("session ended")
}

// Close releases every session.
func (s *Sessions) Close() {
	s.mu.Lock()
	users := make([]string, 0, len(s.boards))
	for uid := range s.boards {
		users = append(users, uid)
	}
	s.mu.Unlock()
	for _, uid := range users {
		s.Release(uid)
	}
}
