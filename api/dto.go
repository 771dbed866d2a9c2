package api

import "github.com/warp/campus-shop/shop"

// ErrorResponse wraps the description of a failed request.
type ErrorResponse struct {
	Error shop.Info `json:"error"`
}

// UpdateResponse lists the fields an update changed.
type UpdateResponse struct {
	Updated []string `json:"updated"`
}

// SetAdminRequest is the body of POST /api/consumers/{id}/adminroles.
type SetAdminRequest struct {
	DepartmentID *int64 `json:"department_id"`
	Admin        *bool  `json:"admin"`
}
