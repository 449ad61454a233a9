package dynamodbadapter

import (
	"context"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory DynamoClient for testing. It keys items by the
// "id" attribute and can simulate pagination, transient failures and
// partially-applied batches.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	// pageSize caps items per scan page; 0 returns everything in one page.
	pageSize int
	// scanErrOnPage makes the Nth scan call fail (1-based); 0 disables.
	scanErrOnPage int
	scanErr       error

	putErr    error
	deleteErr error
	batchErr  error

	// unprocessedFirst reports this many trailing items as unprocessed on
	// the first BatchWriteItem call only.
	unprocessedFirst int
	// unprocessedAlways reports every item unprocessed on every call.
	unprocessedAlways bool

	scanCalls  int
	batchSizes []int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

var _ DynamoClient = (*fakeDynamo)(nil)

func (f *fakeDynamo) sortedKeys() []string {
	keys := make([]string, 0, len(f.items))
	for k := range f.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeDynamo) Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.scanCalls++
	if f.scanErrOnPage != 0 && f.scanCalls == f.scanErrOnPage {
		return nil, f.scanErr
	}

	keys := f.sortedKeys()
	start := 0
	if in.ExclusiveStartKey != nil {
		last, _ := stringAttr(in.ExclusiveStartKey, attrID)
		for i, k := range keys {
			if k == last {
				start = i + 1
				break
			}
		}
	}

	end := len(keys)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}

	out := &dynamodb.ScanOutput{}
	for _, k := range keys[start:end] {
		out.Items = append(out.Items, f.items[k])
	}
	if end < len(keys) {
		out.LastEvaluatedKey = itemKey(keys[end-1])
	}
	return out, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.putErr != nil {
		return nil, f.putErr
	}
	f.store(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	key, _ := stringAttr(in.Key, attrID)
	delete(f.items, key)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.batchErr != nil {
		return nil, f.batchErr
	}

	var table string
	var requests []types.WriteRequest
	for t, reqs := range in.RequestItems {
		table = t
		requests = reqs
	}

	call := len(f.batchSizes)
	f.batchSizes = append(f.batchSizes, len(requests))

	unprocessed := 0
	if f.unprocessedAlways {
		unprocessed = len(requests)
	} else if call == 0 && f.unprocessedFirst > 0 {
		unprocessed = f.unprocessedFirst
		if unprocessed > len(requests) {
			unprocessed = len(requests)
		}
	}

	for _, req := range requests[:len(requests)-unprocessed] {
		switch {
		case req.PutRequest != nil:
			f.store(req.PutRequest.Item)
		case req.DeleteRequest != nil:
			key, _ := stringAttr(req.DeleteRequest.Key, attrID)
			delete(f.items, key)
		}
	}

	out := &dynamodb.BatchWriteItemOutput{}
	if unprocessed > 0 {
		out.UnprocessedItems = map[string][]types.WriteRequest{
			table: requests[len(requests)-unprocessed:],
		}
	}
	return out, nil
}

func (f *fakeDynamo) store(item map[string]types.AttributeValue) {
	key, ok := stringAttr(item, attrID)
	if !ok {
		return
	}
	copied := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		copied[k] = v
	}
	f.items[key] = copied
}

// seedRule inserts a well-formed rule item directly into the fake store.
func (f *fakeDynamo) seedRule(ptype string, rule ...string) {
	item, err := encodeRule(ptype, rule)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store(item)
}

// seedItem inserts a raw item under the given key, bypassing the codec.
// Used to plant malformed records.
func (f *fakeDynamo) seedItem(key string, item map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item[attrID] = &types.AttributeValueMemberS{Value: key}
	f.items[key] = item
}

// ruleStrings returns the decoded contents of the store as "ptype,f0,f1,..."
// strings for order-independent comparison.
func (f *fakeDynamo) ruleStrings() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	set := make(map[string]bool, len(f.items))
	for _, item := range f.items {
		ptype, rule, err := decodeItem(item)
		if err != nil {
			continue
		}
		line := ptype
		for _, v := range rule {
			line += "," + v
		}
		set[line] = true
	}
	return set
}
