package pipeline

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// AllYears selects every row in View.
const AllYears = 0

// Snapshot 某次加载得到的不可变数据集
type Snapshot struct {
	Records  []Record       `json:"records"`
	Issues   []QualityIssue `json:"issues"`
	Source   string         `json:"source"`
	LoadedAt time.Time      `json:"loaded_at"`
}

// ColumnStats 单列统计
type ColumnStats struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// View 按年份过滤后的数据及其统计
type View struct {
	Year    int           `json:"year"`
	Records []Record      `json:"records"`
	Summary []ColumnStats `json:"summary"`
}

// viewKey ties a cached view to the snapshot it was computed from.
type viewKey struct {
	snap *Snapshot
	year int
}

// Store 数据集存储：持有当前快照，缓存过滤结果，监听文件变化
type Store struct {
	path    string
	cleaner *DataCleaner
	logger  *zap.Logger

	current atomic.Pointer[Snapshot]
	views   *lru.Cache[viewKey, View]

	subMu       sync.RWMutex
	subscribers []func(*Snapshot)
}

// NewStore loads the dataset at path, or the built-in rows when path is
// empty, and caches up to cacheSize filtered views.
func NewStore(path string, cacheSize int, logger *zap.Logger) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = 32
	}
	views, err := lru.New[viewKey, View](cacheSize)
	if err != nil {
		return nil, err
	}
	s := &Store{
		path:    path,
		cleaner: NewDataCleaner(),
		logger:  logger,
		views:   views,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload reads and cleans the source again, then swaps the snapshot and
// drops every cached view. Subscribers are told after the swap.
func (s *Store) Reload() error {
	records := Default()
	source := "builtin"
	if s.path != "" {
		loaded, err := LoadFile(s.path)
		if err != nil {
			return err
		}
		records, source = loaded, s.path
	}

	cleaned, issues := s.cleaner.Clean(records)
	if len(cleaned) == 0 {
		return fmt.Errorf("dataset %s has no usable rows", source)
	}
	sort.Slice(cleaned, func(i, j int) bool { return cleaned[i].Year > cleaned[j].Year })

	snap := &Snapshot{
		Records:  cleaned,
		Issues:   issues,
		Source:   source,
		LoadedAt: time.Now(),
	}
	s.current.Store(snap)
	s.views.Purge()

	s.logger.Info("dataset loaded",
		zap.String("source", source),
		zap.Int("rows", len(cleaned)),
		zap.Int("rejected", len(issues)),
	)
	for _, issue := range issues {
		s.logger.Warn("dataset row rejected",
			zap.String("rule", issue.Type),
			zap.Int("year", issue.Year),
			zap.String("reason", issue.Message),
		)
	}

	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, fn := range s.subscribers {
		fn(snap)
	}
	return nil
}

// Snapshot returns the current dataset.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Years returns the distinct years, newest first.
func (s *Store) Years() []int {
	records := s.Snapshot().Records
	years := make([]int, 0, len(records))
	for _, rec := range records {
		years = append(years, rec.Year)
	}
	return years
}

// View returns the rows for year, or every row for AllYears.
func (s *Store) View(year int) View {
	snap := s.Snapshot()
	key := viewKey{snap: snap, year: year}
	if v, ok := s.views.Get(key); ok {
		return v
	}

	var rows []Record
	for _, rec := range snap.Records {
		if year == AllYears || rec.Year == year {
			rows = append(rows, rec)
		}
	}
	v := View{Year: year, Records: rows, Summary: Summarize(rows)}
	s.views.Add(key, v)
	return v
}

// Stats exposes the cleaner counters.
func (s *Store) Stats() CleaningStats {
	return s.cleaner.GetStats()
}

// OnReload registers fn to run after every successful reload.
func (s *Store) OnReload(fn func(*Snapshot)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Watch reloads the dataset whenever its file is written or replaced,
// until ctx is cancelled. The parent directory is watched so that editors
// which write a temp file and rename it are picked up.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return fmt.Errorf("no dataset file to watch")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(s.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.Reload(); err != nil {
				// keep serving the previous snapshot
				s.logger.Warn("dataset reload failed", zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("dataset watcher error", zap.Error(err))
		}
	}
}

// Summarize computes count, mean, population std, min and max per column.
func Summarize(records []Record) []ColumnStats {
	columns := []struct {
		name  string
		value func(Record) float64
	}{
		{ColumnYear, func(r Record) float64 { return float64(r.Year) }},
		{ColumnBottomRate, func(r Record) float64 { return r.BottomRate }},
		{ColumnBottomIncome, func(r Record) float64 { return r.BottomIncome }},
		{ColumnTopRate, func(r Record) float64 { return r.TopRate }},
		{ColumnTopIncome, func(r Record) float64 { return r.TopIncome }},
	}

	stats := make([]ColumnStats, 0, len(columns))
	for _, col := range columns {
		cs := ColumnStats{Column: col.name, Count: len(records)}
		if len(records) == 0 {
			stats = append(stats, cs)
			continue
		}
		cs.Min, cs.Max = math.Inf(1), math.Inf(-1)
		sum := 0.0
		for _, rec := range records {
			v := col.value(rec)
			sum += v
			cs.Min = math.Min(cs.Min, v)
			cs.Max = math.Max(cs.Max, v)
		}
		cs.Mean = sum / float64(len(records))
		sq := 0.0
		for _, rec := range records {
			d := col.value(rec) - cs.Mean
			sq += d * d
		}
		cs.Std = math.Sqrt(sq / float64(len(records)))
		stats = append(stats, cs)
	}
	return stats
}
