package dynamodbadapter

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// attrID is the table's sole key attribute, derived from rule content.
	attrID = "id"
	// attrPtype holds the policy type tag ("p", "g", "p2", ...).
	attrPtype = "pType"
	// attrFieldPrefix + index names the positional field attributes v0..v5.
	attrFieldPrefix = "v"

	// maxRuleFields is the largest field count a rule may carry, matching
	// the casbin convention of request/policy definitions up to v5.
	maxRuleFields = 6
)

// ruleKey derives the item key for a rule. The key is a pure function of the
// type tag and field values: each part is length-prefixed before hashing so
// that distinct rules cannot collide by shifting content between fields
// (["a,b"] vs ["a","b"], ["ab","c"] vs ["a","bc"]).
func ruleKey(ptype string, rule []string) string {
	h := sha256.New()
	var lenBuf [binary.MaxVarintLen64]byte

	writePart := func(s string) {
		n := binary.PutUvarint(lenBuf[:], uint64(len(s)))
		h.Write(lenBuf[:n])
		h.Write([]byte(s))
	}

	writePart(ptype)
	for _, v := range rule {
		writePart(v)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// encodeRule converts a policy rule into a DynamoDB item. Field i maps to
// attribute v<i>; fields are stored exactly as given, empty strings included,
// so field count survives a round trip. Fields beyond the rule's length are
// omitted entirely.
func encodeRule(ptype string, rule []string) (map[string]types.AttributeValue, error) {
	if ptype == "" {
		return nil, fmt.Errorf("encode rule: empty policy type")
	}
	if len(rule) > maxRuleFields {
		return nil, fmt.Errorf("encode rule: %d fields exceeds maximum of %d", len(rule), maxRuleFields)
	}

	item := make(map[string]types.AttributeValue, len(rule)+2)
	item[attrPtype] = &types.AttributeValueMemberS{Value: ptype}
	for i, v := range rule {
		item[fieldAttr(i)] = &types.AttributeValueMemberS{Value: v}
	}
	item[attrID] = &types.AttributeValueMemberS{Value: ruleKey(ptype, rule)}

	return item, nil
}

// decodeItem converts a stored item back into a policy rule. It fails with
// ErrMalformedRecord when the type tag is absent or when the field attributes
// have a gap (v0 and v2 present but v1 missing), since field order could not
// be reconstructed unambiguously.
func decodeItem(item map[string]types.AttributeValue) (ptype string, rule []string, err error) {
	ptype, ok := stringAttr(item, attrPtype)
	if !ok || ptype == "" {
		return "", nil, fmt.Errorf("%w: missing %s attribute", ErrMalformedRecord, attrPtype)
	}

	for i := 0; i < maxRuleFields; i++ {
		v, ok := stringAttr(item, fieldAttr(i))
		if !ok {
			// Contiguity check: no field attribute may follow a gap.
			for j := i + 1; j < maxRuleFields; j++ {
				if _, present := item[fieldAttr(j)]; present {
					return "", nil, fmt.Errorf("%w: field %s present but %s absent",
						ErrMalformedRecord, fieldAttr(j), fieldAttr(i))
				}
			}
			break
		}
		rule = append(rule, v)
	}

	return ptype, rule, nil
}

func fieldAttr(i int) string {
	return fmt.Sprintf("%s%d", attrFieldPrefix, i)
}

func stringAttr(item map[string]types.AttributeValue, name string) (string, bool) {
	av, ok := item[name]
	if !ok {
		return "", false
	}
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return s.Value, true
}
