package geomath

import "sort"

// 文档注释：轻量 geohash 编码（base32）
// 背景：地图层按网格聚合树木标记；精度 7 约 150m，8 约 38m。
var base32 = []byte("0123456789bcdefghjkmnpqrstuvwxyz")

func Geohash(lat, lon float64, precision int) string {
	if precision <= 0 {
		return ""
	}
	latInt := [2]float64{-90, 90}
	lonInt := [2]float64{-180, 180}
	bits := [5]int{16, 8, 4, 2, 1}
	bit, ch := 0, 0
	even := true
	out := make([]byte, 0, precision)
	for len(out) < precision {
		if even {
			mid := (lonInt[0] + lonInt[1]) / 2
			if lon >= mid {
				ch |= bits[bit]
				lonInt[0] = mid
			} else {
				lonInt[1] = mid
			}
		} else {
			mid := (latInt[0] + latInt[1]) / 2
			if lat >= mid {
				ch |= bits[bit]
				latInt[0] = mid
			} else {
				latInt[1] = mid
			}
		}
		even = !even
		if bit < 4 {
			bit++
		} else {
			out = append(out, base32[ch])
			bit, ch = 0, 0
		}
	}
	return string(out)
}

// Cell：一个 geohash 网格内的点数与质心
type Cell struct {
	Hash     string  `json:"geohash"`
	Count    int     `json:"count"`
	Centroid Point   `json:"-"`
	Lat      float64 `json:"latitude"`
	Lon      float64 `json:"longitude"`
}

// 文档注释：按 geohash 网格聚合点集
// 返回：按点数降序、同数按 hash 升序的网格列表；质心为算术平均（网格很小，不做球面修正）。
func Cells(points []Point, precision int) []Cell {
	idx := map[string]int{}
	var out []Cell
	for _, p := range points {
		h := Geohash(p.Lat, p.Lon, precision)
		i, ok := idx[h]
		if !ok {
			i = len(out)
			idx[h] = i
			out = append(out, Cell{Hash: h})
		}
		c := &out[i]
		c.Count++
		c.Centroid.Lat += p.Lat
		c.Centroid.Lon += p.Lon
	}
	for i := range out {
		n := float64(out[i].Count)
		out[i].Centroid.Lat /= n
		out[i].Centroid.Lon /= n
		out[i].Lat = out[i].Centroid.Lat
		out[i].Lon = out[i].Centroid.Lon
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Hash < out[j].Hash
	})
	return out
}
