package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/brainbox/internal/blobstore"
	"github.com/dmitrijs2005/brainbox/internal/common"
	"github.com/dmitrijs2005/brainbox/internal/models"
)

// Session is the single-slot session record: who is signed in, with which
// token, until when. It is readable without touching the database.
type Session struct {
	User        models.User `json:"user"`
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// Expired reports whether the session has expired at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// slot stores the session record under one fixed key.
type slot struct {
	store blobstore.Store
	key   string
}

// read returns the stored record, nil when none is stored. An undecodable
// record is reported as malformed.
func (s slot) read(ctx context.Context) (*Session, error) {
	raw, err := s.store.Get(ctx, s.key)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, common.NewError(common.KindPersistence, "failed to read session record", err)
	}
	return decodeSession(raw)
}

func (s slot) write(ctx context.Context, sess *Session) ([]byte, error) {
	raw, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode session record: %w", err)
	}
	if err := s.store.Put(ctx, s.key, raw); err != nil {
		return nil, common.NewError(common.KindPersistence, "failed to write session record", err)
	}
	return raw, nil
}

func (s slot) clear(ctx context.Context) error {
	if err := s.store.Delete(ctx, s.key); err != nil {
		return common.NewError(common.KindPersistence, "failed to clear session record", err)
	}
	return nil
}

func decodeSession(raw []byte) (*Session, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, common.NewError(common.KindMalformed, "malformed session record", err)
	}
	return &sess, nil
}
