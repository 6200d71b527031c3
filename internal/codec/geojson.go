package codec

import (
	"encoding/json"
	"math"
	"time"

	"olive-mapper/internal/store"
)

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string            `json:"type"`
	Properties featureProperties `json:"properties"`
	Geometry   pointGeometry     `json:"geometry"`
}

type featureProperties struct {
	ID        int    `json:"id"`
	Timestamp string `json:"timestamp"`
	Accuracy  int64  `json:"accuracy"`
	Variety   string `json:"variety"`
	Notes     string `json:"notes"`
}

type pointGeometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// 文档注释：编码为 GeoJSON FeatureCollection
// 约束：坐标顺序为 [经度, 纬度]；properties.id 为 1 起的序号；精度取整；两空格缩进。
func EncodeGeoJSON(recs []store.TreeRecord) ([]byte, error) {
	fc := featureCollection{Type: "FeatureCollection", Features: make([]feature, 0, len(recs))}
	for i, r := range recs {
		fc.Features = append(fc.Features, feature{
			Type: "Feature",
			Properties: featureProperties{
				ID:        i + 1,
				Timestamp: r.Timestamp,
				Accuracy:  int64(math.Round(r.Accuracy)),
				Variety:   r.Variety,
				Notes:     r.Notes,
			},
			Geometry: pointGeometry{Type: "Point", Coordinates: [2]float64{r.Longitude, r.Latitude}},
		})
	}
	return json.MarshalIndent(fc, "", "  ")
}

// 文档注释：解析 GeoJSON
// 背景：输入来源不受控（其他 GIS 工具导出），按松散结构读取，只取需要的字段。
// 约束：
// - JSON 非法或缺少 features 数组时整体拒绝（ErrInvalidGeoJSON），不做部分导入；
// - 纬度取 coordinates[1]，经度取 coordinates[0]，缺失或非有限数的要素计入 Skipped；
// - properties 缺失按空对象处理；精度非数值取 DefaultAccuracy，时间缺失取 now。
func DecodeGeoJSON(data []byte, now time.Time) (Result, error) {
	var res Result
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return res, ErrInvalidGeoJSON
	}
	arr, ok := doc["features"].([]any)
	if !ok {
		return res, ErrInvalidGeoJSON
	}
	ts := store.FormatTimestamp(now)
	for _, it := range arr {
		f, _ := it.(map[string]any)
		lat, lon, ok := pointOf(f)
		if !ok {
			res.Skipped++
			continue
		}
		props, _ := f["properties"].(map[string]any)
		r := store.TreeRecord{
			ID:        store.NewID(),
			Latitude:  lat,
			Longitude: lon,
			Accuracy:  DefaultAccuracy,
			Timestamp: ts,
			Variety:   getStr(props, "variety"),
			Notes:     getStr(props, "notes"),
		}
		if v, ok := getNum(props, "accuracy"); ok {
			r.Accuracy = v
		}
		if v := getStr(props, "timestamp"); v != "" {
			r.Timestamp = v
		}
		res.Records = append(res.Records, r)
	}
	if len(res.Records) == 0 {
		return res, ErrNoValidRecords
	}
	return res, nil
}

func pointOf(f map[string]any) (lat, lon float64, ok bool) {
	g, _ := f["geometry"].(map[string]any)
	coords, _ := g["coordinates"].([]any)
	if len(coords) < 2 {
		return 0, 0, false
	}
	lon, okLon := finite(coords[0])
	lat, okLat := finite(coords[1])
	return lat, lon, okLat && okLon
}

func finite(v any) (float64, bool) {
	x, ok := v.(float64)
	if !ok || math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, false
	}
	return x, true
}

func getStr(m map[string]any, k string) string {
	if v, ok := m[k].(string); ok {
		return v
	}
	return ""
}

func getNum(m map[string]any, k string) (float64, bool) { return finite(m[k]) }
