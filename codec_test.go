package dynamodbadapter

import (
	"errors"
	"reflect"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		ptype string
		rule  []string
	}{
		{"access rule", "p", []string{"alice", "data1", "read"}},
		{"role rule", "g", []string{"alice", "admin"}},
		{"two fields", "p", []string{"bob", "data2"}},
		{"six fields", "p", []string{"a", "b", "c", "d", "e", "f"}},
		{"trailing empty field", "p", []string{"alice", "data1", "read", ""}},
		{"whitespace preserved", "p", []string{" alice ", "Data1", "READ"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item, err := encodeRule(tc.ptype, tc.rule)
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}

			ptype, rule, err := decodeItem(item)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if ptype != tc.ptype {
				t.Errorf("Expected ptype %q, got %q", tc.ptype, ptype)
			}
			if !reflect.DeepEqual(rule, tc.rule) {
				t.Errorf("Expected rule %v, got %v", tc.rule, rule)
			}
		})
	}
}

func TestEncodeRejectsInvalidRules(t *testing.T) {
	if _, err := encodeRule("", []string{"alice"}); err == nil {
		t.Error("Expected error for empty ptype")
	}
	if _, err := encodeRule("p", []string{"a", "b", "c", "d", "e", "f", "g"}); err == nil {
		t.Error("Expected error for rule with more than 6 fields")
	}
}

func TestEncodeOmitsAbsentFields(t *testing.T) {
	item, err := encodeRule("g", []string{"alice", "admin"})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	if _, present := item["v2"]; present {
		t.Error("Expected v2 to be absent for a 2-field rule")
	}
	if v, _ := stringAttr(item, "v1"); v != "admin" {
		t.Errorf("Expected v1=admin, got %q", v)
	}
}

func TestTrailingEmptyFieldIsSignificant(t *testing.T) {
	three, _ := encodeRule("p", []string{"alice", "data1", "read"})
	four, _ := encodeRule("p", []string{"alice", "data1", "read", ""})

	threeKey, _ := stringAttr(three, attrID)
	fourKey, _ := stringAttr(four, attrID)
	if threeKey == fourKey {
		t.Error("Expected a 4-field rule with empty last field to have a different key than the 3-field rule")
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []struct {
		name string
		item map[string]types.AttributeValue
	}{
		{
			"missing ptype",
			map[string]types.AttributeValue{
				"v0": &types.AttributeValueMemberS{Value: "alice"},
			},
		},
		{
			"non-contiguous fields",
			map[string]types.AttributeValue{
				"pType": &types.AttributeValueMemberS{Value: "p"},
				"v0":    &types.AttributeValueMemberS{Value: "alice"},
				"v2":    &types.AttributeValueMemberS{Value: "read"},
			},
		},
		{
			"non-string ptype",
			map[string]types.AttributeValue{
				"pType": &types.AttributeValueMemberN{Value: "1"},
				"v0":    &types.AttributeValueMemberS{Value: "alice"},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := decodeItem(tc.item)
			if !errors.Is(err, ErrMalformedRecord) {
				t.Errorf("Expected ErrMalformedRecord, got %v", err)
			}
		})
	}
}

func TestRuleKeyDeterministic(t *testing.T) {
	first := ruleKey("p", []string{"alice", "data1", "read"})
	second := ruleKey("p", []string{"alice", "data1", "read"})
	if first != second {
		t.Errorf("Expected identical keys, got %q and %q", first, second)
	}
	if len(first) != 64 {
		t.Errorf("Expected a 64-character key, got %d characters", len(first))
	}
}

func TestRuleKeyDistinguishesFieldBoundaries(t *testing.T) {
	cases := []struct {
		name string
		a    []string
		b    []string
	}{
		{"shifted content", []string{"ab", "c"}, []string{"a", "bc"}},
		{"embedded separator", []string{"a,b"}, []string{"a", "b"}},
		{"trailing empty", []string{"a"}, []string{"a", ""}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if ruleKey("p", tc.a) == ruleKey("p", tc.b) {
				t.Errorf("Expected distinct keys for %v and %v", tc.a, tc.b)
			}
		})
	}

	if ruleKey("p", []string{"alice"}) == ruleKey("g", []string{"alice"}) {
		t.Error("Expected the type tag to contribute to the key")
	}
}
