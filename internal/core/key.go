package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/keyservice/internal/metrics"
	"github.com/edvin/keyservice/internal/model"
	"github.com/edvin/keyservice/internal/platform"
)

// DefaultKeyTTL is how long a freshly generated key stays valid.
const DefaultKeyTTL = 24 * time.Hour

var (
	ErrKeyRequired = errors.New("key is required")
	ErrKeyNotFound = errors.New("key not found")
	ErrKeyExpired  = errors.New("key expired")
)

// KeyService issues and verifies time-limited access keys.
//
// Every operation loads the full table, mutates it and saves it back. mu
// serializes that sequence within the process; separate processes sharing
// the same file are not coordinated.
type KeyService struct {
	store KeyStore
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
}

// NewKeyService creates a new KeyService. A non-positive ttl selects
// DefaultKeyTTL.
func NewKeyService(store KeyStore, ttl time.Duration) *KeyService {
	if ttl <= 0 {
		ttl = DefaultKeyTTL
	}
	return &KeyService{store: store, ttl: ttl, now: time.Now}
}

// Generate issues a new key with an empty device list and persists it.
// Keys are not checked for collisions against existing entries.
func (s *KeyService) Generate(ctx context.Context) (*model.GeneratedKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.loadTable(ctx)

	key, err := platform.NewKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	expiry := s.now().Add(s.ttl).UnixMilli()

	table[key] = &model.KeyRecord{Expiry: expiry, Devices: []string{}}
	if err := s.store.Save(ctx, table); err != nil {
		return nil, fmt.Errorf("save key table: %w", err)
	}

	metrics.KeysGenerated.Inc()
	zerolog.Ctx(ctx).Info().Int64("expiry", expiry).Msg("key generated")

	return &model.GeneratedKey{Key: key, Expiry: expiry}, nil
}

// Verify checks key and, when deviceID is non-empty and not yet bound, binds
// it to the key. It returns ErrKeyRequired, ErrKeyNotFound or ErrKeyExpired
// for rejected keys. Expired records are left in place.
func (s *KeyService) Verify(ctx context.Context, key, deviceID string) (*model.KeyRecord, error) {
	if key == "" {
		metrics.KeyVerifications.WithLabelValues(metrics.ResultMissingKey).Inc()
		return nil, ErrKeyRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.loadTable(ctx)

	rec, ok := table[key]
	if !ok || rec == nil {
		metrics.KeyVerifications.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, ErrKeyNotFound
	}

	if rec.Expired(s.now()) {
		metrics.KeyVerifications.WithLabelValues(metrics.ResultExpired).Inc()
		return nil, ErrKeyExpired
	}

	if deviceID != "" && rec.AddDevice(deviceID) {
		if err := s.store.Save(ctx, table); err != nil {
			metrics.KeyVerifications.WithLabelValues(metrics.ResultError).Inc()
			return nil, fmt.Errorf("save key table: %w", err)
		}
		metrics.DevicesRegistered.Inc()
		zerolog.Ctx(ctx).Info().Int("devices", len(rec.Devices)).Msg("device bound to key")
	}

	metrics.KeyVerifications.WithLabelValues(metrics.ResultVerified).Inc()
	return rec, nil
}

// loadTable reads the key table and falls back to an empty one when the
// file is missing or unreadable. The next save overwrites whatever was there.
func (s *KeyService) loadTable(ctx context.Context) model.KeyTable {
	table, err := s.store.Load(ctx)
	if err == nil {
		if table == nil {
			table = model.KeyTable{}
		}
		return table
	}

	logger := zerolog.Ctx(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug().Msg("key table not found, starting empty")
	} else {
		logger.Warn().Err(err).Msg("key table unreadable, starting empty")
	}
	return model.KeyTable{}
}
