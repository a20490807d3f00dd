package model

import "strings"

// Category 分类服务返回的类别
type Category string

const (
	CategoryJob       Category = "JOB"
	CategoryImportant Category = "IMPORTANT"
	CategoryRead      Category = "READ"
	CategoryDelete    Category = "DELETE"
	CategoryUnknown   Category = "UNKNOWN"
)

// Categories 可打标签的固定类别，按映射表优先级排列
func Categories() []Category {
	return []Category{CategoryJob, CategoryImportant, CategoryRead, CategoryDelete}
}

// ParseCategory 规范化分类服务返回的文本
func ParseCategory(s string) Category {
	return Category(strings.ToUpper(strings.TrimSpace(s)))
}

// IsLabelable 空类别和 UNKNOWN 不打标签
func (c Category) IsLabelable() bool {
	return c != "" && c != CategoryUnknown
}

// Color 标签颜色 token，由 host 决定如何渲染
type Color string

const (
	ColorPurple Color = "purple"
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
	ColorBlack  Color = "black"
	ColorGray   Color = "gray"
	ColorWhite  Color = "white"
)

// LabelSpec 由 Category 确定性推导出的可视标签
type LabelSpec struct {
	Title           string `json:"title"`
	BackgroundColor Color  `json:"background_color"`
	ForegroundColor Color  `json:"foreground_color"`
}
