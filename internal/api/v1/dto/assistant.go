package dto

type AssistantRequestDTO struct {
	UserPrompt  string `json:"userPrompt" validate:"required,max=4000"`
	CurrentCode string `json:"currentCode" validate:"max=200000"`
	Language    string `json:"language" validate:"required,max=40"`
}

// AssistantResponseDTO carries either code or an error message
type AssistantResponseDTO struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}
