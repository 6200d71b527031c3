// 包 marker：基于基准标记（fiducial）的相机测距：周期采样、检测、针孔模型估距
package marker

import "math"

// FocalLengthPixels：假定焦距（像素），未标定的固定常数
const FocalLengthPixels = 1000.0

// Corner：图像坐标（像素）
type Corner struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Detection：一次检测到的标记，Corners 按顺序给出四个角点
type Detection struct {
	ID      int      `json:"id"`
	Corners []Corner `json:"corners"`
}

// Perimeter：依次连接角点并首尾闭合的周长
func Perimeter(corners []Corner) float64 {
	var p float64
	for i := range corners {
		j := (i + 1) % len(corners)
		p += math.Hypot(corners[j].X-corners[i].X, corners[j].Y-corners[i].Y)
	}
	return p
}

// 文档注释：由角点估算距离（米）
// 背景：相似三角形的针孔近似，distance = 实际边长 × 焦距 / 平均像素边长；平均边长取周长/4。
// 约束：近似值，不做镜头畸变与标定修正；角点少于 3 个或边长为 0 时 ok=false。
func DistanceFromCorners(corners []Corner, sizeMeters float64) (float64, bool) {
	if len(corners) < 3 {
		return 0, false
	}
	side := Perimeter(corners) / 4
	if side <= 0 || math.IsNaN(side) || math.IsInf(side, 0) {
		return 0, false
	}
	return sizeMeters * FocalLengthPixels / side, true
}
