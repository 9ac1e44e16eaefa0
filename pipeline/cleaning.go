package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// CleaningRule 清洗规则
type CleaningRule interface {
	Apply(*Record) (*Record, error)
	Name() string
}

// resetter is implemented by rules that keep state across one Clean call.
type resetter interface {
	Reset()
}

// QualityIssue 质量问题
type QualityIssue struct {
	Type      string    `json:"type"`
	Severity  string    `json:"severity"` // low, medium, high
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Year      int       `json:"year"`
}

// CleaningStats 清洗统计
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// DataCleaner 数据清洗器
type DataCleaner struct {
	rules []CleaningRule

	stats     CleaningStats
	statsLock sync.RWMutex
}

// NewDataCleaner 创建数据清洗器
func NewDataCleaner() *DataCleaner {
	cleaner := &DataCleaner{
		stats: CleaningStats{Issues: make(map[string]int64)},
	}

	// 添加默认规则
	cleaner.AddRule(NewRequiredFieldsRule())
	cleaner.AddRule(NewRangeValidationRule())
	cleaner.AddRule(NewDuplicateYearRule())

	return cleaner
}

// AddRule 添加清洗规则
func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
}

// Clean 清洗数据，返回通过的记录和发现的问题
func (dc *DataCleaner) Clean(records []Record) ([]Record, []QualityIssue) {
	dc.statsLock.Lock()
	defer dc.statsLock.Unlock()

	for _, rule := range dc.rules {
		if r, ok := rule.(resetter); ok {
			r.Reset()
		}
	}

	cleaned := make([]Record, 0, len(records))
	var issues []QualityIssue

	for i := range records {
		dc.stats.TotalProcessed++
		rec := &records[i]

		var recordIssues []QualityIssue
		for _, rule := range dc.rules {
			out, err := rule.Apply(rec)
			if err != nil {
				recordIssues = append(recordIssues, QualityIssue{
					Type:      rule.Name(),
					Severity:  "high",
					Message:   err.Error(),
					Timestamp: time.Now(),
					Year:      rec.Year,
				})
				dc.stats.Issues[rule.Name()]++
				// later rules assume the earlier ones held
				break
			}
			if out != nil {
				rec = out
			}
		}

		if len(recordIssues) > 0 {
			dc.stats.Rejected++
			issues = append(issues, recordIssues...)
			continue
		}
		dc.stats.Passed++
		cleaned = append(cleaned, *rec)
	}

	dc.stats.LastClean = time.Now()
	return cleaned, issues
}

// GetStats 获取统计信息
func (dc *DataCleaner) GetStats() CleaningStats {
	dc.statsLock.RLock()
	defer dc.statsLock.RUnlock()

	stats := dc.stats
	stats.Issues = make(map[string]int64, len(dc.stats.Issues))
	for k, v := range dc.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

// ============ 清洗规则实现 ============

// RequiredFieldsRule 必填字段规则：年份、底档税率、底档收入
type RequiredFieldsRule struct {
	Columns []string
}

func NewRequiredFieldsRule() *RequiredFieldsRule {
	return &RequiredFieldsRule{
		Columns: []string{ColumnYear, ColumnBottomIncome, ColumnBottomRate},
	}
}

func (r *RequiredFieldsRule) Name() string {
	return "required_fields"
}

func (r *RequiredFieldsRule) Apply(rec *Record) (*Record, error) {
	var missing []string
	for _, column := range r.Columns {
		for _, m := range rec.Missing {
			if m == column {
				missing = append(missing, column)
				break
			}
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return rec, nil
}

// RangeValidationRule 数值范围规则
type RangeValidationRule struct {
	MinYear int
	MaxYear int
	MaxRate float64
}

func NewRangeValidationRule() *RangeValidationRule {
	return &RangeValidationRule{
		MinYear: 1900,
		MaxYear: 2100,
		MaxRate: 100,
	}
}

func (r *RangeValidationRule) Name() string {
	return "range_validation"
}

func (r *RangeValidationRule) Apply(rec *Record) (*Record, error) {
	if rec.Year < r.MinYear || rec.Year > r.MaxYear {
		return nil, fmt.Errorf("year %d out of range [%d, %d]", rec.Year, r.MinYear, r.MaxYear)
	}
	for _, rate := range []float64{rec.BottomRate, rec.TopRate} {
		if rate < 0 || rate > r.MaxRate {
			return nil, fmt.Errorf("rate %.2f out of range [0, %.0f]", rate, r.MaxRate)
		}
	}
	if rec.BottomIncome < 0 || rec.TopIncome < 0 {
		return nil, fmt.Errorf("negative bracket income")
	}
	return rec, nil
}

// DuplicateYearRule 重复年份检测，保留第一条
type DuplicateYearRule struct {
	seen map[int]struct{}
}

func NewDuplicateYearRule() *DuplicateYearRule {
	return &DuplicateYearRule{seen: make(map[int]struct{})}
}

func (r *DuplicateYearRule) Name() string {
	return "duplicate_detection"
}

func (r *DuplicateYearRule) Reset() {
	r.seen = make(map[int]struct{})
}

func (r *DuplicateYearRule) Apply(rec *Record) (*Record, error) {
	if _, exists := r.seen[rec.Year]; exists {
		return nil, fmt.Errorf("duplicate year %d", rec.Year)
	}
	r.seen[rec.Year] = struct{}{}
	return rec, nil
}
