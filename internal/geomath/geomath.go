// 包 geomath：树木坐标的球面距离、包围盒面积近似与密度计算；纯函数，无外部依赖
package geomath

import "math"

// EarthRadiusMeters：球面地球半径（米）
const EarthRadiusMeters = 6371000.0

// Point：WGS84 经纬度（度）
type Point struct {
	Lat float64
	Lon float64
}

// 文档注释：球面距离（Haversine），返回米
// 约束：对称；同点返回 0；对跖点附近沿用 Haversine 的数值误差，不做特殊处理。
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) + math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// Bounds：点集包围盒
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// BoundsOf：计算包围盒；空输入返回 false
func BoundsOf(points []Point) (Bounds, bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	b := Bounds{MinLat: points[0].Lat, MaxLat: points[0].Lat, MinLon: points[0].Lon, MaxLon: points[0].Lon}
	for _, p := range points[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLon = math.Min(b.MinLon, p.Lon)
		b.MaxLon = math.Max(b.MaxLon, p.Lon)
	}
	return b, true
}

// 文档注释：包围盒面积近似（平方米）
// 背景：南北边长 × 东西边长（东西边取最小纬度那一条）；不是真实的测地面积，跨大经度或高纬度时偏差明显。
// 约束：空输入返回 0。
func BoundingBoxArea(points []Point) float64 {
	b, ok := BoundsOf(points)
	if !ok {
		return 0
	}
	ns := Distance(b.MinLat, b.MinLon, b.MaxLat, b.MinLon)
	ew := Distance(b.MinLat, b.MinLon, b.MinLat, b.MaxLon)
	return ns * ew
}

// 文档注释：密度（棵/公顷）
// 返回：四舍五入后的整数密度；面积为 0 时 ok=false 表示“未定义”。
func Density(count int, areaSquareMeters float64) (int, bool) {
	if areaSquareMeters == 0 {
		return 0, false
	}
	hectares := areaSquareMeters / 10000
	return int(math.Round(float64(count) / hectares)), true
}
