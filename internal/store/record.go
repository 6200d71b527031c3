// 包 store：树木记录数据模型与记录仓库（唯一持有可变集合），整体序列化到持久化槽位
package store

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout：ISO-8601，毫秒精度 UTC（与导出文件中的时间文本一致）
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// MethodCamera：由标记测距路径产生的记录
const MethodCamera = "camera"

// 文档注释：树木记录
// 背景：Accuracy 有两种含义：定位设备给出的误差半径（米），或相机测得的标记距离（米）；
// 两个来源不会同时写入，来源只能通过 MeasurementMethod 与备注区分。
// 约束：ID 创建后不可变；Timestamp 保留原始文本，导入的时间不做规范化；仅 Notes/Variety 可编辑。
type TreeRecord struct {
	ID                string  `json:"id"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	Accuracy          float64 `json:"accuracy"`
	Timestamp         string  `json:"timestamp"`
	Notes             string  `json:"notes"`
	Variety           string  `json:"variety"`
	MeasurementMethod string  `json:"measurementMethod,omitempty"`
}

// NewID：生成新的记录 ID
func NewID() string { return uuid.NewString() }

// FormatTimestamp：按 TimestampLayout 输出 UTC 时间文本
func FormatTimestamp(t time.Time) string { return t.UTC().Format(TimestampLayout) }

// NewRecord：以新 ID 与当前时间构造记录
func NewRecord(lat, lon, accuracy float64, now time.Time) TreeRecord {
	return TreeRecord{
		ID:        NewID(),
		Latitude:  lat,
		Longitude: lon,
		Accuracy:  accuracy,
		Timestamp: FormatTimestamp(now),
	}
}

// Time：解析时间文本；无法解析时返回零值与 false
func (r TreeRecord) Time() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Validate：入库校验，仅检查经纬度为有限数（不校验取值范围）
func (r TreeRecord) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Reason: "empty"}
	}
	if math.IsNaN(r.Latitude) || math.IsInf(r.Latitude, 0) {
		return &ValidationError{Field: "latitude", Reason: "not a finite number"}
	}
	if math.IsNaN(r.Longitude) || math.IsInf(r.Longitude, 0) {
		return &ValidationError{Field: "longitude", Reason: "not a finite number"}
	}
	return nil
}

// 文档注释：按时间倒序排列（最新在前）
// 背景：集合的插入顺序没有语义，列表展示需显式排序；无法解析的时间排在最后，同值保持原相对顺序。
func SortByRecency(recs []TreeRecord) []TreeRecord {
	out := append([]TreeRecord(nil), recs...)
	sort.SliceStable(out, func(i, j int) bool {
		ti, oki := out[i].Time()
		tj, okj := out[j].Time()
		if oki != okj {
			return oki
		}
		return ti.After(tj)
	})
	return out
}
