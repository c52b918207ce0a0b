// Package gateway defines the data types and client abstraction of a
// rule/list based DNS filtering gateway. Lists hold up to a provider defined
// number of domains and rules reference lists through a traffic expression.
package gateway

import "context"

// Rule actions understood by the gateway.
const (
	ActionBlock    = "block"
	ActionOverride = "override"
)

// ListTypeDomain is the list type holding plain domain names.
const ListTypeDomain = "DOMAIN"

// FilterDNS restricts a rule to DNS traffic.
const FilterDNS = "dns"

// Item is a single entry of a List.
type Item struct {
	Value       string `json:"value"`
	Description string `json:"description"`
}

// List is a provider side named container of domains. Description carries
// the ownership tag of the run that created it.
type List struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Count       int    `json:"count"`
	Items       []Item `json:"items,omitempty"`
}

// RuleSettings holds action specific rule options.
type RuleSettings struct {
	OverrideIPs []string `json:"override_ips,omitempty"`
}

// Rule is a provider side filtering rule. Lower precedence is evaluated
// first. Description carries the ownership tag of the run that created it.
type Rule struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Action       string        `json:"action"`
	Filters      []string      `json:"filters,omitempty"`
	Traffic      string        `json:"traffic"`
	Precedence   int           `json:"precedence"`
	Enabled      bool          `json:"enabled"`
	RuleSettings *RuleSettings `json:"rule_settings,omitempty"`
}

// CreateListRequest is the payload of Client.CreateList.
type CreateListRequest struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Items       []Item `json:"items"`
}

// CreateRuleRequest is the payload of Client.CreateRule. A zero Precedence
// lets the provider pick one.
type CreateRuleRequest struct {
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Action       string        `json:"action"`
	Filters      []string      `json:"filters"`
	Traffic      string        `json:"traffic"`
	Precedence   int           `json:"precedence,omitempty"`
	Enabled      bool          `json:"enabled"`
	RuleSettings *RuleSettings `json:"rule_settings,omitempty"`
}

// Client is the abstraction over gateway providers.
//
// Every method fails with serrors.ErrUnauthorized or serrors.ErrForbidden when
// the credentials are rejected, serrors.ErrRateLimited when throttled,
// serrors.ErrRejected when the provider reports errors in a successful
// response and a *serrors.StatusError for any other non-2xx answer.
//
//go:generate mockgen -package mockgateway -source=interface.go -destination=mock/mockgateway.go *
type Client interface {
	// Lists returns all lists of the account.
	Lists(ctx context.Context) ([]List, error)
	// CreateList creates a list and returns it with its provider assigned ID.
	CreateList(ctx context.Context, req CreateListRequest) (List, error)
	// DeleteList removes the list with the given ID.
	DeleteList(ctx context.Context, id string) error
	// Rules returns all rules of the account.
	Rules(ctx context.Context) ([]Rule, error)
	// CreateRule creates a rule and returns it with its ID and precedence.
	CreateRule(ctx context.Context, req CreateRuleRequest) (Rule, error)
	// DeleteRule removes the rule with the given ID.
	DeleteRule(ctx context.Context, id string) error
}
