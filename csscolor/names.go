package csscolor

import "image/color"

// namedColors 覆盖编辑器调色板中出现的 CSS 颜色名。
var namedColors = map[string]color.NRGBA{
	"transparent": {0, 0, 0, 0},
	"black":       {0, 0, 0, 255},
	"white":       {255, 255, 255, 255},
	"red":         {255, 0, 0, 255},
	"green":       {0, 128, 0, 255},
	"lime":        {0, 255, 0, 255},
	"blue":        {0, 0, 255, 255},
	"yellow":      {255, 255, 0, 255},
	"cyan":        {0, 255, 255, 255},
	"aqua":        {0, 255, 255, 255},
	"magenta":     {255, 0, 255, 255},
	"fuchsia":     {255, 0, 255, 255},
	"gray":        {128, 128, 128, 255},
	"grey":        {128, 128, 128, 255},
	"silver":      {192, 192, 192, 255},
	"lightgray":   {211, 211, 211, 255},
	"lightgrey":   {211, 211, 211, 255},
	"darkgray":    {169, 169, 169, 255},
	"darkgrey":    {169, 169, 169, 255},
	"gainsboro":   {220, 220, 220, 255},
	"whitesmoke":  {245, 245, 245, 255},
	"maroon":      {128, 0, 0, 255},
	"olive":       {128, 128, 0, 255},
	"navy":        {0, 0, 128, 255},
	"purple":      {128, 0, 128, 255},
	"teal":        {0, 128, 128, 255},
	"orange":      {255, 165, 0, 255},
	"gold":        {255, 215, 0, 255},
	"pink":        {255, 192, 203, 255},
	"brown":       {165, 42, 42, 255},
	"coral":       {255, 127, 80, 255},
	"tomato":      {255, 99, 71, 255},
	"salmon":      {250, 128, 114, 255},
	"crimson":     {220, 20, 60, 255},
	"indigo":      {75, 0, 130, 255},
	"violet":      {238, 130, 238, 255},
	"orchid":      {218, 112, 214, 255},
	"skyblue":     {135, 206, 235, 255},
	"steelblue":   {70, 130, 180, 255},
	"royalblue":   {65, 105, 225, 255},
	"dodgerblue":  {30, 144, 255, 255},
	"slategray":   {112, 128, 144, 255},
	"slategrey":   {112, 128, 144, 255},
	"darkblue":    {0, 0, 139, 255},
	"darkgreen":   {0, 100, 0, 255},
	"darkred":     {139, 0, 0, 255},
	"beige":       {245, 245, 220, 255},
	"ivory":       {255, 255, 240, 255},
	"khaki":       {240, 230, 140, 255},
	"lavender":    {230, 230, 250, 255},
	"turquoise":   {64, 224, 208, 255},
	"tan":         {210, 180, 140, 255},
}
