package supervision

import "time"

// Link は副社長と部署の分担関係を表します。
// 一つの部署に複数の副社長を紐づけられますが、デフォルトは最大一件です。
type Link struct {
	ID              string
	VicePresidentID string
	DepartmentID    string
	IsDefault       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
