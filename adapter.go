// Package dynamodbadapter provides a casbin policy adapter backed by a single
// DynamoDB table. Each policy rule is stored as one item keyed by a hash of
// the rule's content, which makes every write idempotent: re-adding a rule
// overwrites the same item, and removes are delete-if-present.
//
// The adapter holds no state between calls beyond the filtered flag required
// by the casbin contract, so multiple processes can safely share one table.
// SavePolicy's read-then-write reconciliation is not transactional: a
// concurrent writer can interleave between the scan and the batch write and
// lose its update. Single-writer deployments are the intended use.
package dynamodbadapter

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
)

// Filter constrains LoadFilteredPolicy. P patterns apply to policy-section
// rules, G to grouping-section rules; entries are matched positionally and an
// empty entry leaves that position unconstrained.
type Filter struct {
	P []string
	G []string
}

// Adapter persists casbin policy rules in a DynamoDB table.
type Adapter struct {
	gw       *gateway
	filtered bool
}

var (
	_ persist.Adapter             = (*Adapter)(nil)
	_ persist.BatchAdapter        = (*Adapter)(nil)
	_ persist.FilteredAdapter     = (*Adapter)(nil)
	_ persist.ContextAdapter      = (*Adapter)(nil)
	_ persist.ContextBatchAdapter = (*Adapter)(nil)
)

// New creates an adapter for the given table. The client is typically a
// *dynamodb.Client; the table must already exist with a single string hash
// key named "id" (see cmd/policytable).
func New(client DynamoClient, tableName string) (*Adapter, error) {
	if client == nil {
		return nil, fmt.Errorf("dynamodb adapter: nil client")
	}
	if tableName == "" {
		return nil, fmt.Errorf("dynamodb adapter: empty table name")
	}
	return &Adapter{gw: &gateway{client: client, table: tableName}}, nil
}

// LoadPolicy loads all policy rules from the table into the model. Items
// that cannot be decoded are skipped and counted, never fatal: one corrupt
// record must not make the whole policy unavailable.
func (a *Adapter) LoadPolicy(m model.Model) error {
	return a.LoadPolicyCtx(context.Background(), m)
}

// LoadPolicyCtx is LoadPolicy with a caller-supplied context.
func (a *Adapter) LoadPolicyCtx(ctx context.Context, m model.Model) error {
	_, err := a.loadPolicy(ctx, m, nil)
	return err
}

// LoadFilteredPolicy loads only the rules matching filter, which must be a
// Filter or *Filter. A nil filter loads everything.
func (a *Adapter) LoadFilteredPolicy(m model.Model, filter interface{}) error {
	var f *Filter
	switch v := filter.(type) {
	case nil:
	case Filter:
		f = &v
	case *Filter:
		f = v
	default:
		return fmt.Errorf("dynamodb adapter: unsupported filter type %T", filter)
	}

	filtered, err := a.loadPolicy(context.Background(), m, f)
	if err != nil {
		return err
	}
	a.filtered = filtered
	return nil
}

// IsFiltered reports whether the last load left rules out due to a filter.
func (a *Adapter) IsFiltered() bool {
	return a.filtered
}

func (a *Adapter) loadPolicy(ctx context.Context, m model.Model, f *Filter) (filtered bool, err error) {
	items, err := a.gw.scanAll(ctx)
	if err != nil {
		return false, err
	}

	skipped := 0
	for _, item := range items {
		ptype, rule, err := decodeItem(item)
		if err != nil {
			if errors.Is(err, ErrMalformedRecord) {
				skipped++
				continue
			}
			return false, err
		}
		if len(rule) == 0 {
			skipped++
			continue
		}

		if f != nil && !matchesLoadFilter(f, ptype, rule) {
			filtered = true
			continue
		}

		persist.LoadPolicyArray(append([]string{ptype}, rule...), m)
	}

	if skipped > 0 {
		log.Printf("Warning: skipped %d malformed policy records during load", skipped)
	}

	return filtered, nil
}

// matchesLoadFilter applies the section-appropriate pattern to a rule. The
// section is taken from the type tag's leading character, as casbin does.
func matchesLoadFilter(f *Filter, ptype string, rule []string) bool {
	pattern := f.G
	if ptype[0] == 'p' {
		pattern = f.P
	}

	for i, want := range pattern {
		if want == "" {
			continue
		}
		if i >= len(rule) || rule[i] != want {
			return false
		}
	}
	return true
}

// SavePolicy replaces the table's contents with the model's rules: it writes
// every rule in the model and deletes every stored item whose key is no
// longer present. Saving an empty model clears the table.
func (a *Adapter) SavePolicy(m model.Model) error {
	return a.SavePolicyCtx(context.Background(), m)
}

// SavePolicyCtx is SavePolicy with a caller-supplied context.
func (a *Adapter) SavePolicyCtx(ctx context.Context, m model.Model) error {
	target := make(map[string]types.WriteRequest)
	for _, sec := range []string{"p", "g"} {
		for ptype, ast := range m[sec] {
			for _, rule := range ast.Policy {
				item, err := encodeRule(ptype, rule)
				if err != nil {
					return err
				}
				key, _ := stringAttr(item, attrID)
				target[key] = types.WriteRequest{PutRequest: &types.PutRequest{Item: item}}
			}
		}
	}

	current, err := a.gw.scanAll(ctx)
	if err != nil {
		return err
	}

	requests := make([]types.WriteRequest, 0, len(target)+len(current))
	for _, req := range target {
		requests = append(requests, req)
	}

	seen := make(map[string]bool, len(current))
	for _, item := range current {
		key, ok := stringAttr(item, attrID)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		if _, keep := target[key]; keep {
			continue
		}
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: itemKey(key)},
		})
	}

	if len(requests) == 0 {
		return nil
	}
	return a.gw.batchWrite(ctx, requests)
}

// AddPolicy stores a single rule. Adding a rule that already exists
// overwrites the same item with identical content.
func (a *Adapter) AddPolicy(sec string, ptype string, rule []string) error {
	return a.AddPolicyCtx(context.Background(), sec, ptype, rule)
}

// AddPolicyCtx is AddPolicy with a caller-supplied context.
func (a *Adapter) AddPolicyCtx(ctx context.Context, sec string, ptype string, rule []string) error {
	item, err := encodeRule(ptype, rule)
	if err != nil {
		return err
	}
	return a.gw.putItem(ctx, item)
}

// AddPolicies stores multiple rules in batched writes.
func (a *Adapter) AddPolicies(sec string, ptype string, rules [][]string) error {
	return a.AddPoliciesCtx(context.Background(), sec, ptype, rules)
}

// AddPoliciesCtx is AddPolicies with a caller-supplied context.
func (a *Adapter) AddPoliciesCtx(ctx context.Context, sec string, ptype string, rules [][]string) error {
	if len(rules) == 0 {
		return nil
	}

	puts := make(map[string]types.WriteRequest, len(rules))
	for _, rule := range rules {
		item, err := encodeRule(ptype, rule)
		if err != nil {
			return err
		}
		key, _ := stringAttr(item, attrID)
		puts[key] = types.WriteRequest{PutRequest: &types.PutRequest{Item: item}}
	}

	requests := make([]types.WriteRequest, 0, len(puts))
	for _, req := range puts {
		requests = append(requests, req)
	}
	return a.gw.batchWrite(ctx, requests)
}

// RemovePolicy deletes a rule by its content-derived key. Removing a rule
// that is not present succeeds and changes nothing.
func (a *Adapter) RemovePolicy(sec string, ptype string, rule []string) error {
	return a.RemovePolicyCtx(context.Background(), sec, ptype, rule)
}

// RemovePolicyCtx is RemovePolicy with a caller-supplied context.
func (a *Adapter) RemovePolicyCtx(ctx context.Context, sec string, ptype string, rule []string) error {
	return a.gw.deleteItem(ctx, ruleKey(ptype, rule))
}

// RemovePolicies deletes multiple rules in batched writes.
func (a *Adapter) RemovePolicies(sec string, ptype string, rules [][]string) error {
	return a.RemovePoliciesCtx(context.Background(), sec, ptype, rules)
}

// RemovePoliciesCtx is RemovePolicies with a caller-supplied context.
func (a *Adapter) RemovePoliciesCtx(ctx context.Context, sec string, ptype string, rules [][]string) error {
	if len(rules) == 0 {
		return nil
	}

	keys := make(map[string]bool, len(rules))
	requests := make([]types.WriteRequest, 0, len(rules))
	for _, rule := range rules {
		key := ruleKey(ptype, rule)
		if keys[key] {
			continue
		}
		keys[key] = true
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: itemKey(key)},
		})
	}
	return a.gw.batchWrite(ctx, requests)
}

// RemoveFilteredPolicy deletes all rules of the given type whose fields,
// starting at fieldIndex, match fieldValues positionally. An empty value
// leaves that position unconstrained.
func (a *Adapter) RemoveFilteredPolicy(sec string, ptype string, fieldIndex int, fieldValues ...string) error {
	return a.RemoveFilteredPolicyCtx(context.Background(), sec, ptype, fieldIndex, fieldValues...)
}

// RemoveFilteredPolicyCtx is RemoveFilteredPolicy with a caller-supplied context.
func (a *Adapter) RemoveFilteredPolicyCtx(ctx context.Context, sec string, ptype string, fieldIndex int, fieldValues ...string) error {
	_, err := a.RemoveFilteredPolicyCount(ctx, ptype, fieldIndex, fieldValues...)
	return err
}

// RemoveFilteredPolicyCount is RemoveFilteredPolicy returning the number of
// rules deleted. Stored items that cannot be decoded cannot be matched, so
// they are conservatively kept and counted separately.
func (a *Adapter) RemoveFilteredPolicyCount(ctx context.Context, ptype string, fieldIndex int, fieldValues ...string) (int, error) {
	if len(fieldValues) == 0 {
		return 0, nil
	}

	items, err := a.gw.scanAll(ctx)
	if err != nil {
		return 0, err
	}

	skipped := 0
	var requests []types.WriteRequest
	for _, item := range items {
		itemPtype, rule, err := decodeItem(item)
		if err != nil {
			skipped++
			continue
		}
		if itemPtype != ptype || !matchesFields(rule, fieldIndex, fieldValues) {
			continue
		}

		key, ok := stringAttr(item, attrID)
		if !ok {
			key = ruleKey(itemPtype, rule)
		}
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: itemKey(key)},
		})
	}

	if skipped > 0 {
		log.Printf("Warning: kept %d undecodable policy records during filtered removal", skipped)
	}
	if len(requests) == 0 {
		return 0, nil
	}
	if err := a.gw.batchWrite(ctx, requests); err != nil {
		return 0, err
	}
	return len(requests), nil
}

func matchesFields(rule []string, fieldIndex int, fieldValues []string) bool {
	for i, want := range fieldValues {
		if want == "" {
			continue
		}
		pos := fieldIndex + i
		if pos >= len(rule) || rule[pos] != want {
			return false
		}
	}
	return true
}
