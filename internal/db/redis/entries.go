package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/ragdex/internal/db"
	"github.com/kailas-cloud/ragdex/internal/domain"
)

func entryKey(collection, id string) string {
	return domain.KeyPrefix + "entries:" + collection + ":" + id
}

func entryPattern(collection string) string {
	return domain.KeyPrefix + "entries:" + collection + ":*"
}

// PutEntries stores a batch of entry records inside one MULTI/EXEC
// transaction on a dedicated connection, so the batch is all-or-nothing.
func (s *Store) PutEntries(ctx context.Context, collection string, records []db.EntryRecord) error {
	if len(records) == 0 {
		return nil
	}

	err := s.client.Dedicated(func(c rueidis.DedicatedClient) error {
		cmds := make([]rueidis.Completed, 0, len(records)+2)
		cmds = append(cmds, c.B().Multi().Build())
		for _, rec := range records {
			cmds = append(cmds, c.B().Set().
				Key(entryKey(collection, rec.ID)).
				Value(string(rec.Data)).
				Build())
		}
		cmds = append(cmds, c.B().Exec().Build())

		for _, res := range c.DoMulti(ctx, cmds...) {
			if err := res.Error(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &db.Error{Op: db.OpPutEntries, Err: err}
	}
	return nil
}

// ListEntries returns every entry record of a collection. Order is not
// guaranteed; callers order by their own payload fields.
func (s *Store) ListEntries(ctx context.Context, collection string) ([]db.EntryRecord, error) {
	keys, err := s.scan(ctx, entryPattern(collection))
	if err != nil {
		return nil, &db.Error{Op: db.OpList, Err: err}
	}
	if len(keys) == 0 {
		return nil, nil
	}

	cmd := s.b().Mget().Key(keys...).Build()
	values, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpList, Err: err}
	}

	records := make([]db.EntryRecord, 0, len(keys))
	for i, v := range values {
		data, err := v.AsBytes()
		if err != nil {
			// Key expired between SCAN and MGET; skip.
			continue
		}
		records = append(records, db.EntryRecord{ID: idFromKey(keys[i]), Data: data})
	}
	return records, nil
}

// DeleteEntries removes every entry of a collection.
func (s *Store) DeleteEntries(ctx context.Context, collection string) error {
	keys, err := s.scan(ctx, entryPattern(collection))
	if err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	if len(keys) == 0 {
		return nil
	}
	cmd := s.b().Del().Key(keys...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// scan iterates keys matching a pattern.
func (s *Store) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(500).Build()
		entry, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", pattern, err)
		}
		keys = append(keys, entry.Elements...)
		cursor = entry.Cursor
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func idFromKey(key string) string {
	idx := strings.LastIndexByte(key, ':')
	if idx < 0 {
		return key
	}
	return key[idx+1:]
}
