package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hi-noikiy/redtrader/internal/domain/models"
	domrepo "github.com/hi-noikiy/redtrader/internal/domain/repository"
	"github.com/hi-noikiy/redtrader/pkg/cache"
	applogger "github.com/hi-noikiy/redtrader/pkg/logger"
)

const metaTable = "meta"

// MetaStore implements domrepo.MetaStore. Names are case-insensitive and
// stored lower-cased; values are JSON text.
type MetaStore struct {
	*base
	cache cache.Service
	ttl   time.Duration
	now   func() time.Time
}

var _ domrepo.MetaStore = (*MetaStore)(nil)

func metaKey(name string) string { return cache.GenerateKey("meta", name) }

// Write inserts name if absent, then updates its value and modification
// time. Both statements share one commit.
func (s *MetaStore) Write(ctx context.Context, name string, value any, opts ...domrepo.WriteOption) bool {
	name = strings.ToLower(name)
	begin := time.Now()
	raw, err := json.Marshal(value)
	if err != nil {
		s.fail("write", metaTable, err, applogger.String("name", name))
		return false
	}
	now := s.now().UTC().Truncate(time.Second)
	for _, st := range s.b.Dialect().MetaWrite(name, string(raw), now) {
		if err = s.b.Execute(ctx, st.Query, st.Args...); err != nil {
			break
		}
	}
	if err == nil {
		err = s.finish(domrepo.NewWriteOptions(opts...))
	}
	if err != nil {
		s.fail("write", metaTable, err, applogger.String("name", name))
		return false
	}
	if s.cache != nil {
		if cerr := s.cache.Delete(ctx, metaKey(name)); cerr != nil {
			s.l.Warn("meta cache invalidate failed", applogger.String("name", name), applogger.Error(cerr))
		}
	}
	s.done("write", metaTable, begin)
	return true
}

// Read returns the entry for name, or nil when it was never written.
func (s *MetaStore) Read(ctx context.Context, name string) (*models.MetaEntry, error) {
	name = strings.ToLower(name)
	if s.cache != nil {
		var cached models.MetaEntry
		err := s.cache.Get(ctx, metaKey(name), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.l.Warn("meta cache read failed", applogger.String("name", name), applogger.Error(err))
		}
	}

	var (
		raw          *string
		ctime, mtime dbTime
	)
	q := "SELECT value, ctime, mtime FROM " + s.b.Dialect().From(metaTable) + " WHERE name = ?"
	ok, err := s.b.FetchOne(ctx, q, []any{name}, &raw, &ctime, &mtime)
	if err != nil {
		s.fail("read", metaTable, err, applogger.String("name", name))
		return nil, fmt.Errorf("read meta %q: %w", name, err)
	}
	if !ok {
		return nil, nil
	}
	entry := &models.MetaEntry{
		Name:       name,
		Value:      s.codec.decodePayload(raw),
		CreatedAt:  ctime.Time,
		ModifiedAt: mtime.Time,
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, metaKey(name), entry, s.ttl); err != nil {
			s.l.Warn("meta cache fill failed", applogger.String("name", name), applogger.Error(err))
		}
	}
	return entry, nil
}
