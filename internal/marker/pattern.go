package marker

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	patternCell   = 40
	patternBorder = 2
)

// 固定的三种 5x5 图案（简化版，非标准 ArUco 字典）
var patterns = map[int][5][5]uint8{
	0: {{1, 0, 1, 0, 1}, {0, 0, 0, 0, 0}, {1, 0, 1, 0, 1}, {0, 0, 0, 0, 0}, {1, 0, 1, 0, 1}},
	1: {{1, 0, 1, 0, 1}, {0, 1, 0, 1, 0}, {1, 0, 1, 0, 1}, {0, 1, 0, 1, 0}, {1, 0, 1, 0, 1}},
	2: {{1, 1, 1, 1, 1}, {1, 0, 0, 0, 1}, {1, 0, 0, 0, 1}, {1, 0, 0, 0, 1}, {1, 1, 1, 1, 1}},
}

// PatternIDs：可打印的标记编号
func PatternIDs() []int { return []int{0, 1, 2} }

// PatternFilename：aruco-marker-<id>.svg
func PatternFilename(id int) string {
	if _, ok := patterns[id]; !ok {
		id = 0
	}
	return fmt.Sprintf("aruco-marker-%d.svg", id)
}

// 文档注释：生成可打印标记 SVG
// 约束：未知编号回退为 0；每格 40 单位，图案四周留 2 格，最外圈为黑色边框；下方附编号与打印尺寸说明。
// 返回：SVG 文本与实际使用的编号。
func PatternSVG(id int, sizeCm float64) (string, int) {
	pat, ok := patterns[id]
	if !ok {
		id, pat = 0, patterns[0]
	}
	sizeCm = sanitizeSize(sizeCm)
	total := (len(pat) + patternBorder*2) * patternCell
	height := total + 70
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">`, total, height)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="white"/>`, total, height)
	fmt.Fprintf(&b, `<rect x="0" y="0" width="%d" height="%d" fill="black"/>`, total, patternCell)
	fmt.Fprintf(&b, `<rect x="0" y="%d" width="%d" height="%d" fill="black"/>`, total-patternCell, total, patternCell)
	fmt.Fprintf(&b, `<rect x="0" y="0" width="%d" height="%d" fill="black"/>`, patternCell, total)
	fmt.Fprintf(&b, `<rect x="%d" y="0" width="%d" height="%d" fill="black"/>`, total-patternCell, patternCell, total)
	for y, row := range pat {
		for x, bit := range row {
			if bit == 1 {
				fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="%d" fill="black"/>`,
					(x+patternBorder)*patternCell, (y+patternBorder)*patternCell, patternCell, patternCell)
			}
		}
	}
	fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="middle" font-size="24" font-family="Arial">ArUco ID: %d</text>`, total/2, total+30, id)
	fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="middle" font-size="18" font-family="Arial" fill="#666">Print on A4 - Size: %scm</text>`,
		total/2, total+55, strconv.FormatFloat(sizeCm, 'f', -1, 64))
	b.WriteString(`</svg>`)
	return b.String(), id
}
