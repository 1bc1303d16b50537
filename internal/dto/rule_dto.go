package dto

import "time"

type CreateRuleRequest struct {
	Domain      string `json:"domain" validate:"required,max=100"`
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
}

type SeedRulesRequest struct {
	Rules []CreateRuleRequest `json:"rules" validate:"required,min=1,dive"`
}

type RuleResponse struct {
	Id          string    `json:"id"`
	Domain      string    `json:"domain"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type RuleListResponse struct {
	Rules []RuleResponse `json:"rules"`
	Total int64          `json:"total"`
}
