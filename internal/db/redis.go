package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/jira-case-importer/internal/domain"
	"github.com/airenas/jira-case-importer/internal/secure"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps staged case rows and the OAuth token record in Redis.
// Values are encrypted at rest
type RedisStore struct {
	client  *redis.Client
	crypter *secure.Crypter
}

// NewRedisStore creates a new RedisStore with connection pooling
func NewRedisStore(connStr string, encryptionKey string) (*RedisStore, error) {
	opt, err := redis.ParseURL(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	goapp.Log.Info().Str("redis", opt.Addr).Int("db", opt.DB).Send()
	rdb := redis.NewClient(opt)

	crypter, err := secure.NewCrypter(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("create crypter: %w", err)
	}

	return &RedisStore{
		client:  rdb,
		crypter: crypter,
	}, nil
}

func (r *RedisStore) keyCases(issueType string) string {
	return fmt.Sprintf("cases:%s", issueType)
}

func (r *RedisStore) keyToken() string {
	return "oauth:default"
}

// SaveCases overwrites the staged rows for the issue type
func (r *RedisStore) SaveCases(ctx context.Context, issueType string, rows []domain.CaseRow) error {
	goapp.Log.Trace().Str("issueType", issueType).Int("rows", len(rows)).Msg("Save cases")
	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	encrypted, err := r.crypter.Encrypt(data)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	return r.client.Set(ctx, r.keyCases(issueType), encrypted, 0).Err()
}

// GetCases retrieves the staged rows for the issue type
func (r *RedisStore) GetCases(ctx context.Context, issueType string) ([]domain.CaseRow, error) {
	goapp.Log.Trace().Str("issueType", issueType).Msg("Get cases")
	bs, err := r.client.Get(ctx, r.keyCases(issueType)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return []domain.CaseRow{}, nil
		}
		return nil, fmt.Errorf("get cases: %w", err)
	}
	decrypted, err := r.crypter.Decrypt(bs)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	var rows []domain.CaseRow
	if err := json.Unmarshal(decrypted, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteCases drops the staged rows, returns the dropped count
func (r *RedisStore) DeleteCases(ctx context.Context, issueType string) (int, error) {
	rows, err := r.GetCases(ctx, issueType)
	if err != nil {
		return 0, err
	}
	if err := r.client.Del(ctx, r.keyCases(issueType)).Err(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// SaveToken stores the OAuth token record
func (r *RedisStore) SaveToken(ctx context.Context, token *domain.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	encrypted, err := r.crypter.Encrypt(data)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	return r.client.Set(ctx, r.keyToken(), encrypted, 0).Err()
}

// GetToken retrieves the OAuth token record, nil when absent
func (r *RedisStore) GetToken(ctx context.Context) (*domain.Token, error) {
	bs, err := r.client.Get(ctx, r.keyToken()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	decrypted, err := r.crypter.Decrypt(bs)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	var t domain.Token
	if err := json.Unmarshal(decrypted, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
