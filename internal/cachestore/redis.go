package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/receitas/internal/offline"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "receitas:offline:"
	redisPingTimeout   = 5 * time.Second
	fieldStatus        = "status"
	fieldHeader        = "header"
	fieldBody          = "body"
	fieldStoredAt      = "stored_at_ns"
)

var (
	errMissingRedisClient   = errors.New("cachestore: redis client is required")
	errMalformedIndexMember = errors.New("cachestore: malformed cache index member")
)

// OpenRedis parses a redis:// URL and verifies the connection.
func OpenRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	options, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisStorage keeps each entry in a hash and orders every cache with a
// sorted set whose members lead with storage time and a per-cache sequence.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStorage wraps client. An empty prefix uses "receitas:offline:".
func NewRedisStorage(client redis.UniversalClient, prefix string) (*RedisStorage, error) {
	if client == nil {
		return nil, errMissingRedisClient
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStorage{client: client, prefix: prefix}, nil
}

func (s *RedisStorage) entryKey(cacheName, key string) string {
	return s.prefix + "entry:" + cacheName + ":" + key
}

func (s *RedisStorage) indexKey(cacheName string) string {
	return s.prefix + "index:" + cacheName
}

func (s *RedisStorage) sequenceKey(cacheName string) string {
	return s.prefix + "sequence:" + cacheName
}

func (s *RedisStorage) Match(ctx context.Context, cacheName, key string) (offline.Entry, bool, error) {
	values, err := s.client.HGetAll(ctx, s.entryKey(cacheName, key)).Result()
	if err != nil {
		return offline.Entry{}, false, err
	}
	if len(values) == 0 {
		return offline.Entry{}, false, nil
	}

	status, err := strconv.Atoi(values[fieldStatus])
	if err != nil {
		return offline.Entry{}, false, fmt.Errorf("decode cached status: %w", err)
	}
	storedAt, err := strconv.ParseInt(values[fieldStoredAt], 10, 64)
	if err != nil {
		return offline.Entry{}, false, fmt.Errorf("decode cached timestamp: %w", err)
	}
	header := http.Header{}
	if raw := values[fieldHeader]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &header); err != nil {
			return offline.Entry{}, false, fmt.Errorf("decode cached headers: %w", err)
		}
	}
	return offline.Entry{
		Key:      key,
		Status:   status,
		Header:   header,
		Body:     []byte(values[fieldBody]),
		StoredAt: time.Unix(0, storedAt).UTC(),
	}, true, nil
}

func (s *RedisStorage) Put(ctx context.Context, cacheName string, entry offline.Entry) error {
	headerJSON, err := json.Marshal(entry.Header)
	if err != nil {
		return fmt.Errorf("encode headers: %w", err)
	}
	storedAt := entry.StoredAt.UnixNano()
	return putEntryScript.Run(ctx, s.client,
		[]string{s.entryKey(cacheName, entry.Key), s.indexKey(cacheName), s.sequenceKey(cacheName)},
		strconv.Itoa(entry.Status),
		string(headerJSON),
		entry.Body,
		strconv.FormatInt(storedAt, 10),
		sortableTime(storedAt),
		entry.Key,
	).Err()
}

func (s *RedisStorage) Delete(ctx context.Context, cacheName, key string) error {
	return deleteEntryScript.Run(ctx, s.client,
		[]string{s.entryKey(cacheName, key), s.indexKey(cacheName)},
	).Err()
}

// Keys lists a cache oldest first. Index members share one score, so Redis
// orders them by their time and sequence prefix.
func (s *RedisStorage) Keys(ctx context.Context, cacheName string) ([]offline.EntryMeta, error) {
	members, err := s.client.ZRange(ctx, s.indexKey(cacheName), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	metas := make([]offline.EntryMeta, 0, len(members))
	for _, member := range members {
		meta, err := parseIndexMember(member)
		if err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// Index members are "<time>:<sequence>:<key>" with both numbers zero padded.
var putEntryScript = redis.NewScript(`
local previous = redis.call('HGET', KEYS[1], 'index_member')
if previous then
	redis.call('ZREM', KEYS[2], previous)
end
local sequence = redis.call('INCR', KEYS[3])
local member = ARGV[5] .. ':' .. string.format('%020d', sequence) .. ':' .. ARGV[6]
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'header', ARGV[2], 'body', ARGV[3], 'stored_at_ns', ARGV[4], 'index_member', member)
redis.call('ZADD', KEYS[2], 0, member)
return 1
`)

var deleteEntryScript = redis.NewScript(`
local previous = redis.call('HGET', KEYS[1], 'index_member')
if previous then
	redis.call('ZREM', KEYS[2], previous)
end
redis.call('DEL', KEYS[1])
return 1
`)

// sortableTime maps nanoseconds onto an unsigned range so that the padded
// decimal form sorts the same way as the signed value.
func sortableTime(nanos int64) string {
	return fmt.Sprintf("%020d", uint64(nanos)^signBit)
}

const signBit = uint64(1) << 63

func parseIndexMember(member string) (offline.EntryMeta, error) {
	parts := strings.SplitN(member, ":", 3)
	if len(parts) != 3 {
		return offline.EntryMeta{}, fmt.Errorf("decode cache index member %q: %w", member, errMalformedIndexMember)
	}
	sortable, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return offline.EntryMeta{}, fmt.Errorf("decode cache index member %q: %w", member, err)
	}
	return offline.EntryMeta{
		Key:      parts[2],
		StoredAt: time.Unix(0, int64(sortable^signBit)).UTC(),
	}, nil
}
