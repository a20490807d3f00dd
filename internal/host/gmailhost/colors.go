package gmailhost

import "inboxtriage/internal/model"

// Gmail 只接受固定调色板中的颜色
var palette = map[model.Color]string{
	model.ColorPurple: "#a479e2",
	model.ColorRed:    "#cc3a21",
	model.ColorBlue:   "#4a86e8",
	model.ColorBlack:  "#000000",
	model.ColorGray:   "#666666",
	model.ColorWhite:  "#ffffff",
}

// HexColor 未知 token 回落到灰色
func HexColor(c model.Color) string {
	if hex, ok := palette[c]; ok {
		return hex
	}
	return palette[model.ColorGray]
}
