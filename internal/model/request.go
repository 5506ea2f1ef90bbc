package model

type CreateEntryRequest struct {
	Content string `json:"content"`
	Mood    Mood   `json:"mood"`
}

type UpdateEntryRequest struct {
	Content *string `json:"content"`
	Mood    *Mood   `json:"mood"`
}

type SetRoleRequest struct {
	Role string `json:"role"`
}
