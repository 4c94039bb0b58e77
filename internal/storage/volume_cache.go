// Package storage хранит раскрытые потоки объемов между запусками, чтобы
// повторная загрузка записи не декодировала RLE заново.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/annel0/scc-replay/internal/logging"
	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

// keyPrefix пространство ключей кеша объемов
var keyPrefix = []byte("vol:")

// CacheStats счетчики обращений
type CacheStats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Writes uint64 `json:"writes"`
	Errors uint64 `json:"errors"`
}

// VolumeCache реализует volume.Cache поверх BadgerDB. Значения сжаты zstd,
// ключ: xxhash64 исходного payload и его длина.
type VolumeCache struct {
	db      *badger.DB
	dbPath  string
	log     *logging.Logger
	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mutex   sync.RWMutex
	isReady bool

	hits, misses, writes, errs uint64
}

// NewVolumeCache открывает кеш в каталоге dataPath/volumes.
// Пустой dataPath открывает кеш в памяти.
func NewVolumeCache(dataPath string, log *logging.Logger) (*VolumeCache, error) {
	var opts badger.Options
	dbPath := ""
	if dataPath == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		dbPath = filepath.Join(dataPath, "volumes")
		opts = badger.DefaultOptions(dbPath)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &VolumeCache{
		db:      db,
		dbPath:  dbPath,
		log:     log,
		encoder: enc,
		decoder: dec,
		isReady: true,
	}, nil
}

// Key ключ записи для payload
func Key(payload string) []byte {
	key := make([]byte, len(keyPrefix)+16)
	copy(key, keyPrefix)
	binary.BigEndian.PutUint64(key[len(keyPrefix):], xxhash.Sum64String(payload))
	binary.BigEndian.PutUint64(key[len(keyPrefix)+8:], uint64(len(payload)))
	return key
}

// Get возвращает раскрытый поток для payload
func (vc *VolumeCache) Get(payload string) ([]byte, bool) {
	vc.mutex.RLock()
	defer vc.mutex.RUnlock()
	if !vc.isReady {
		return nil, false
	}

	var compressed []byte
	err := vc.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(Key(payload))
		if err != nil {
			return err
		}
		compressed, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		atomic.AddUint64(&vc.misses, 1)
		return nil, false
	}
	if err != nil {
		atomic.AddUint64(&vc.errs, 1)
		vc.log.Warn("чтение кеша объемов: %v", err)
		return nil, false
	}

	raw, err := vc.decoder.DecodeAll(compressed, nil)
	if err != nil {
		atomic.AddUint64(&vc.errs, 1)
		vc.log.Warn("поврежденная запись кеша объемов: %v", err)
		return nil, false
	}
	atomic.AddUint64(&vc.hits, 1)
	return raw, true
}

// Put сохраняет раскрытый поток. Ошибки записи только логируются:
// кеш не влияет на результат декодирования.
func (vc *VolumeCache) Put(payload string, raw []byte) {
	vc.mutex.RLock()
	defer vc.mutex.RUnlock()
	if !vc.isReady {
		return
	}

	compressed := vc.encoder.EncodeAll(raw, nil)
	err := vc.db.Update(func(txn *badger.Txn) error {
		return txn.Set(Key(payload), compressed)
	})
	if err != nil {
		atomic.AddUint64(&vc.errs, 1)
		vc.log.Warn("запись кеша объемов: %v", err)
		return
	}
	atomic.AddUint64(&vc.writes, 1)
}

// Len число записей в кеше
func (vc *VolumeCache) Len() int {
	vc.mutex.RLock()
	defer vc.mutex.RUnlock()
	if !vc.isReady {
		return 0
	}

	n := 0
	_ = vc.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n
}

// Stats счетчики обращений
func (vc *VolumeCache) Stats() CacheStats {
	return CacheStats{
		Hits:   atomic.LoadUint64(&vc.hits),
		Misses: atomic.LoadUint64(&vc.misses),
		Writes: atomic.LoadUint64(&vc.writes),
		Errors: atomic.LoadUint64(&vc.errs),
	}
}

// Close закрывает хранилище
func (vc *VolumeCache) Close() error {
	vc.mutex.Lock()
	defer vc.mutex.Unlock()

	if !vc.isReady {
		return nil
	}
	vc.isReady = false
	vc.encoder.Close()
	vc.decoder.Close()
	return vc.db.Close()
}
