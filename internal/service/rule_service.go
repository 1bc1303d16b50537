// FILE: internal/service/rule_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"transcript-review-be/internal/constant"
	"transcript-review-be/internal/dto"
	"transcript-review-be/internal/entity"
	"transcript-review-be/internal/repository/specification"
	"transcript-review-be/internal/repository/unitofwork"
	"transcript-review-be/pkg/events"
	pktNats "transcript-review-be/pkg/nats"

	"github.com/google/uuid"
)

type IRuleService interface {
	Create(ctx context.Context, userId uuid.UUID, req *dto.CreateRuleRequest) (*dto.RuleResponse, error)
	Seed(ctx context.Context, userId uuid.UUID, req *dto.SeedRulesRequest) (*dto.RuleListResponse, error)
	List(ctx context.Context, domain string) (*dto.RuleListResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ruleService struct {
	uowFactory     unitofwork.RepositoryFactory
	eventPublisher *pktNats.Publisher
}

func NewRuleService(
	uowFactory unitofwork.RepositoryFactory,
	eventPublisher *pktNats.Publisher,
) IRuleService {
	return &ruleService{
		uowFactory:     uowFactory,
		eventPublisher: eventPublisher,
	}
}

func (c *ruleService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateRuleRequest) (*dto.RuleResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	rule := entity.Rule{
		Id:          uuid.New(),
		Domain:      req.Domain,
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   time.Now(),
	}

	if err := uow.RuleRepository().Create(ctx, &rule); err != nil {
		return nil, err
	}

	res := c.toResponse(&rule)
	return &res, nil
}

// Seed loads a whole rule set in one transaction. Either every rule lands or
// none does, so a reviewer never sees a half-imported rule set.
func (c *ruleService) Seed(ctx context.Context, userId uuid.UUID, req *dto.SeedRulesRequest) (*dto.RuleListResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	rules := make([]dto.RuleResponse, 0, len(req.Rules))
	domainSet := make(map[string]bool)

	for _, r := range req.Rules {
		rule := entity.Rule{
			Id:          uuid.New(),
			Domain:      r.Domain,
			Name:        r.Name,
			Description: r.Description,
			CreatedAt:   time.Now(),
		}
		if err := uow.RuleRepository().Create(ctx, &rule); err != nil {
			return nil, err
		}
		rules = append(rules, c.toResponse(&rule))
		domainSet[rule.Domain] = true
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	domains := make([]string, 0, len(domainSet))
	for d := range domainSet {
		domains = append(domains, d)
	}

	// Publish Event for Notification System
	if c.eventPublisher != nil {
		evt := events.BaseEvent{
			Type: constant.EventRulesetSeeded,
			Data: map[string]interface{}{
				"count":   len(rules),
				"domain":  strings.Join(domains, ", "),
				"user_id": userId,
			},
			OccurredAt: time.Now(),
		}
		if err := c.eventPublisher.Publish(ctx, evt); err != nil {
			fmt.Printf("[WARN] Failed to publish %s event: %v\n", constant.EventRulesetSeeded, err)
		}
	}

	return &dto.RuleListResponse{
		Rules: rules,
		Total: int64(len(rules)),
	}, nil
}

func (c *ruleService) List(ctx context.Context, domain string) (*dto.RuleListResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	specs := []specification.Specification{
		specification.OrderBy{Field: "name", Desc: false},
	}
	if domain != "" {
		specs = append(specs, specification.ByDomain{Domain: domain})
	}

	rules, err := uow.RuleRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	items := make([]dto.RuleResponse, len(rules))
	for i, rule := range rules {
		items[i] = c.toResponse(rule)
	}

	return &dto.RuleListResponse{
		Rules: items,
		Total: int64(len(items)),
	}, nil
}

// Delete soft-deletes the rule. Selections committed under it keep their
// rule_id; the rule row stays resolvable for history.
func (c *ruleService) Delete(ctx context.Context, id uuid.UUID) error {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	rule, err := uow.RuleRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if rule == nil {
		return &dto.NotFoundError{Resource: "rule"}
	}

	return uow.RuleRepository().Delete(ctx, id)
}

func (c *ruleService) toResponse(rule *entity.Rule) dto.RuleResponse {
	return dto.RuleResponse{
		Id:          rule.Id.String(),
		Domain:      rule.Domain,
		Name:        rule.Name,
		Description: rule.Description,
		CreatedAt:   rule.CreatedAt,
	}
}
