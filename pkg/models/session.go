package models

type Session struct {
	AdminAuth    bool   `json:"adminAuth"`
	AdminUser    string `json:"adminUser,omitempty"`
	CustomerName string `json:"customerName,omitempty"`
}
