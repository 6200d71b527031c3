package api

import "time"

// 文档注释：对外请求/响应结构
// 约束：字段名与持久化文档保持同一风格（小驼峰）；新增字段需评估前端依赖。
type fixRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  float64  `json:"accuracy"`
}

type editRequest struct {
	Notes   *string `json:"notes"`
	Variety *string `json:"variety"`
}

type importResponse struct {
	Format   string `json:"format"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
}

type cameraResponse struct {
	State        string     `json:"state"`
	MarkerSizeCm float64    `json:"markerSizeCm"`
	Distance     *float64   `json:"distance,omitempty"`
	MarkerID     *int       `json:"markerId,omitempty"`
	At           *time.Time `json:"at,omitempty"`
}

type markerSizeRequest struct {
	SizeCm float64 `json:"sizeCm"`
}

type themeBody struct {
	Theme string `json:"theme"`
}

type installPromptBody struct {
	Dismissed bool `json:"dismissed"`
}

type errorBody struct {
	Error string `json:"error"`
}
