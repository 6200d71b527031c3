package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"olive-mapper/internal/logger"
	"olive-mapper/internal/metrics"
	"olive-mapper/internal/slot"
)

// Editable：允许修改的字段
type Editable struct {
	Notes   string
	Variety string
}

// 文档注释：记录仓库
// 背景：集合整体作为一个 JSON 文档写入槽位 oliveTrees，每次持久化都是整篇覆盖，最后一次完整写入生效。
// 约束：
// - 修改与快照编码在同一把写锁内完成，两次持久化不会交错；
// - Add/AddBatch 不自动持久化（由调用方在一批操作后调用 Persist），Update/Remove/Clear 自动持久化；
// - 槽位为空（nil）时仅在内存中工作。
type Store struct {
	mu    sync.RWMutex
	recs  []TreeRecord
	index map[string]int
	slot  slot.Slot
	log   *slog.Logger
}

// New：创建空仓库；s 可为 nil
func New(s slot.Slot) *Store {
	return &Store{index: map[string]int{}, slot: s, log: logger.Component("store")}
}

// Add：追加一条记录
func (s *Store) Add(ctx context.Context, rec TreeRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[rec.ID]; ok {
		return &DuplicateIDError{ID: rec.ID}
	}
	s.appendLocked(rec)
	s.log.Debug("store_add", "id", rec.ID, "lat", rec.Latitude, "lon", rec.Longitude)
	return nil
}

// AddBatch：整批追加，任何一条不合法或重复则整批不生效
func (s *Store) AddBatch(ctx context.Context, recs []TreeRecord) error {
	seen := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		if err := r.Validate(); err != nil {
			return err
		}
		if _, dup := seen[r.ID]; dup {
			return &DuplicateIDError{ID: r.ID}
		}
		seen[r.ID] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		if _, ok := s.index[r.ID]; ok {
			return &DuplicateIDError{ID: r.ID}
		}
	}
	for _, r := range recs {
		s.appendLocked(r)
	}
	s.log.Info("store_add_batch", "added", len(recs), "total", len(s.recs))
	return nil
}

// Update：修改备注与品种（去除首尾空白），随后持久化
func (s *Store) Update(ctx context.Context, id string, mutate func(*Editable)) (TreeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return TreeRecord{}, &NotFoundError{ID: id}
	}
	ed := Editable{Notes: s.recs[i].Notes, Variety: s.recs[i].Variety}
	if mutate != nil {
		mutate(&ed)
	}
	s.recs[i].Notes = strings.TrimSpace(ed.Notes)
	s.recs[i].Variety = strings.TrimSpace(ed.Variety)
	out := s.recs[i]
	return out, s.persistLocked(ctx)
}

// Remove：删除记录；不存在时为空操作且不触发持久化
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return false, nil
	}
	s.recs = append(s.recs[:i], s.recs[i+1:]...)
	s.reindexLocked()
	s.log.Info("store_remove", "id", id, "total", len(s.recs))
	return true, s.persistLocked(ctx)
}

// Clear：清空集合并持久化
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.recs)
	s.recs = nil
	s.index = map[string]int{}
	s.log.Info("store_clear", "removed", n)
	return s.persistLocked(ctx)
}

// List：按插入顺序返回快照副本
func (s *Store) List() []TreeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]TreeRecord(nil), s.recs...)
}

func (s *Store) Get(id string) (TreeRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return TreeRecord{}, false
	}
	return s.recs[i], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

// Persist：将当前集合整体写入槽位
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

// 文档注释：从槽位恢复集合
// 约束：槽位缺失或内容损坏时集合为空，只记录日志不返回错误；重复 ID 保留首条。
// 返回恢复的记录数。
func (s *Store) Restore(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = nil
	s.index = map[string]int{}
	if s.slot == nil {
		return 0
	}
	data, err := s.slot.Load(ctx, slot.KeyTrees)
	if errors.Is(err, slot.ErrNotFound) {
		s.log.Info("store_restore_empty")
		return 0
	}
	if err != nil {
		s.log.Warn("store_restore_error", "err", err)
		return 0
	}
	var recs []TreeRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		s.log.Warn("store_restore_corrupt", "err", err, "bytes", len(data))
		return 0
	}
	dropped := 0
	for _, r := range recs {
		if _, dup := s.index[r.ID]; dup || r.Validate() != nil {
			dropped++
			continue
		}
		s.appendLocked(r)
	}
	s.log.Info("store_restore_ok", "count", len(s.recs), "dropped", dropped)
	return len(s.recs)
}

func (s *Store) appendLocked(r TreeRecord) {
	s.index[r.ID] = len(s.recs)
	s.recs = append(s.recs, r)
}

func (s *Store) reindexLocked() {
	s.index = make(map[string]int, len(s.recs))
	for i, r := range s.recs {
		s.index[r.ID] = i
	}
}

func (s *Store) persistLocked(ctx context.Context) error {
	if s.slot == nil {
		return nil
	}
	recs := s.recs
	if recs == nil {
		recs = []TreeRecord{}
	}
	data, err := json.Marshal(recs)
	if err == nil {
		err = s.slot.Save(ctx, slot.KeyTrees, data)
	}
	if err != nil {
		metrics.PersistErrorsTotal.Inc()
		s.log.Error("store_persist_error", "err", err, "count", len(recs))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.log.Debug("store_persist_ok", "count", len(recs), "bytes", len(data))
	return nil
}
