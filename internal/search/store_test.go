package search

import (
	"context"
	"sort"
	"strconv"
	"time"
)

// memStore is an in-memory stand-in for the Redis command surface.
type memStore struct {
	hashes  map[string]map[string]string
	sets    map[string]map[string]struct{}
	zsets   map[string]map[string]float64
	strings map[string]string
	counts  map[string]int64
	ttls    map[string]time.Duration
}

func newMemStore() *memStore {
	return &memStore{
		hashes:  make(map[string]map[string]string),
		sets:    make(map[string]map[string]struct{}),
		zsets:   make(map[string]map[string]float64),
		strings: make(map[string]string),
		counts:  make(map[string]int64),
		ttls:    make(map[string]time.Duration),
	}
}

func (m *memStore) HSet(_ context.Context, key string, fields map[string]any) error {
	hash, ok := m.hashes[key]
	if !ok {
		hash = make(map[string]string)
		m.hashes[key] = hash
	}
	for field, value := range fields {
		hash[field] = toString(value)
	}
	return nil
}

func (m *memStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	out := make(map[string]string, len(m.hashes[key]))
	for field, value := range m.hashes[key] {
		out[field] = value
	}
	return out, nil
}

func (m *memStore) HGet(_ context.Context, key, field string) (string, bool, error) {
	value, ok := m.hashes[key][field]
	return value, ok, nil
}

func (m *memStore) SAdd(_ context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	for _, member := range members {
		set[member] = struct{}{}
	}
	return nil
}

func (m *memStore) SRem(_ context.Context, key string, members ...string) error {
	for _, member := range members {
		delete(m.sets[key], member)
	}
	return nil
}

func (m *memStore) SMembers(_ context.Context, key string) ([]string, error) {
	members := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		members = append(members, member)
	}
	sort.Strings(members)
	return members, nil
}

func (m *memStore) SInter(_ context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	var members []string
	for member := range m.sets[keys[0]] {
		inAll := true
		for _, key := range keys[1:] {
			if _, ok := m.sets[key][member]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			members = append(members, member)
		}
	}
	sort.Strings(members)
	return members, nil
}

func (m *memStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	zset, ok := m.zsets[key]
	if !ok {
		zset = make(map[string]float64)
		m.zsets[key] = zset
	}
	zset[member] = score
	return nil
}

func (m *memStore) ZAddNX(ctx context.Context, key string, score float64, member string) error {
	if _, ok := m.zsets[key][member]; ok {
		return nil
	}
	return m.ZAdd(ctx, key, score, member)
}

func (m *memStore) ZIncrBy(_ context.Context, key string, incr float64, member string) error {
	zset, ok := m.zsets[key]
	if !ok {
		zset = make(map[string]float64)
		m.zsets[key] = zset
	}
	zset[member] += incr
	return nil
}

func (m *memStore) ZRem(_ context.Context, key string, members ...string) error {
	for _, member := range members {
		delete(m.zsets[key], member)
	}
	return nil
}

func (m *memStore) ZScore(_ context.Context, key, member string) (float64, bool, error) {
	score, ok := m.zsets[key][member]
	return score, ok, nil
}

func (m *memStore) ZCard(_ context.Context, key string) (int64, error) {
	return int64(len(m.zsets[key])), nil
}

func (m *memStore) ZRange(_ context.Context, key string, start, stop int64, rev bool) ([]scoredMember, error) {
	members := make([]scoredMember, 0, len(m.zsets[key]))
	for member, score := range m.zsets[key] {
		members = append(members, scoredMember{Member: member, Score: score})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			if rev {
				return members[i].Score > members[j].Score
			}
			return members[i].Score < members[j].Score
		}
		if rev {
			return members[i].Member > members[j].Member
		}
		return members[i].Member < members[j].Member
	})
	if stop < 0 {
		stop = int64(len(members)) + stop
	}
	if start >= int64(len(members)) || stop < start {
		return nil, nil
	}
	if stop >= int64(len(members)) {
		stop = int64(len(members)) - 1
	}
	return members[start : stop+1], nil
}

func (m *memStore) Get(_ context.Context, key string) (string, bool, error) {
	value, ok := m.strings[key]
	return value, ok, nil
}

func (m *memStore) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	m.strings[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.hashes, key)
		delete(m.sets, key)
		delete(m.zsets, key)
		delete(m.strings, key)
		delete(m.counts, key)
	}
	return nil
}

func (m *memStore) IncrEx(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.counts[key]++
	m.ttls[key] = ttl
	// Counters read back as strings, matching Redis string-encoded integers.
	m.strings[key] = strconv.FormatInt(m.counts[key], 10)
	return m.counts[key], nil
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}
