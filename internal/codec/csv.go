// 包 codec：树木集合与两种交换格式（表格 CSV、地理要素 GeoJSON）之间的转换
package codec

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"time"

	"olive-mapper/internal/store"
)

// CSVHeader：导出表头（七列，顺序固定）
var CSVHeader = []string{"ID", "Latitude", "Longitude", "Accuracy (m)", "Timestamp", "Variety", "Notes"}

// DefaultAccuracy：导入时精度无法解析的缺省值（米）
const DefaultAccuracy = 10.0

// 文档注释：编码为 CSV
// 背景：首列为 1 起的序号而非记录 ID，行序为仓库当前顺序（不按时间排序）。
// 约束：每个字段直接包裹双引号，不转义字段内的引号与逗号；表头不加引号；每行以 \n 结尾。
func EncodeCSV(recs []store.TreeRecord) []byte {
	var b bytes.Buffer
	b.WriteString(strings.Join(CSVHeader, ","))
	b.WriteByte('\n')
	for i, r := range recs {
		row := []string{
			strconv.Itoa(i + 1),
			formatFloat(r.Latitude),
			formatFloat(r.Longitude),
			strconv.FormatInt(int64(math.Round(r.Accuracy)), 10),
			r.Timestamp,
			r.Variety,
			r.Notes,
		}
		for j, f := range row {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(f)
			b.WriteByte('"')
		}
		b.WriteByte('\n')
	}
	return b.Bytes()
}

// 文档注释：解析 CSV
// 背景：朴素解析器，按换行与逗号切分，每个字段去掉一个前导与一个尾随双引号后再去空白。
// 约束：
// - 已知限制：字段内含逗号或转义引号时会错位，不做修正；
// - 第一行非空行无条件视为表头丢弃；
// - 行需至少 5 个字段且经纬度为有限数，否则计入 Skipped；
// - 精度无法解析时取 DefaultAccuracy，时间为空取 now，品种与备注缺省为空串；
// - 一条有效行都没有时返回 ErrNoValidRecords。
func DecodeCSV(data []byte, now time.Time) (Result, error) {
	var lines []string
	for _, ln := range strings.Split(string(data), "\n") {
		ln = strings.TrimSuffix(ln, "\r")
		if strings.TrimSpace(ln) == "" {
			continue
		}
		lines = append(lines, ln)
	}
	var res Result
	if len(lines) < 2 {
		return res, ErrNoValidRecords
	}
	ts := store.FormatTimestamp(now)
	for _, ln := range lines[1:] {
		parts := strings.Split(ln, ",")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(unquote(p))
		}
		if len(parts) < 5 {
			res.Skipped++
			continue
		}
		lat, okLat := parseFinite(parts[1])
		lon, okLon := parseFinite(parts[2])
		if !okLat || !okLon {
			res.Skipped++
			continue
		}
		acc, ok := parseFinite(parts[3])
		if !ok {
			acc = DefaultAccuracy
		}
		r := store.TreeRecord{
			ID:        store.NewID(),
			Latitude:  lat,
			Longitude: lon,
			Accuracy:  acc,
			Timestamp: parts[4],
			Variety:   field(parts, 5),
			Notes:     field(parts, 6),
		}
		if r.Timestamp == "" {
			r.Timestamp = ts
		}
		res.Records = append(res.Records, r)
	}
	if len(res.Records) == 0 {
		return res, ErrNoValidRecords
	}
	return res, nil
}

func unquote(s string) string {
	s = strings.TrimPrefix(s, `"`)
	return strings.TrimSuffix(s, `"`)
}

func field(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

// parseFinite：严格解析整个字段；带单位或尾随字符的值（如 "37.5m"）视为无法解析，
// 坐标字段因此整行跳过，精度字段取 DefaultAccuracy
func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
