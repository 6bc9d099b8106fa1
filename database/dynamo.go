package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/sfallmann/conf-central/model"
)

const (
	groupPrefix   = "group#"
	counterPrefix = "counter#"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoStore keeps every entity in one table keyed by the websafe key in
// "pk". Entity groups are versioned by a separate "group#<root>" item that
// commits check and bump inside TransactWriteItems.
type DynamoStore struct {
	client DynamoAPI
	table  string
}

// NewDynamo wraps an existing client.
func NewDynamo(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

// OpenDynamo builds a client from the default AWS credential chain. endpoint
// overrides the service URL, e.g. for DynamoDB Local.
func OpenDynamo(ctx context.Context, table, region, endpoint string) (*DynamoStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("database: load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewDynamo(client, table), nil
}

func stringAttr(s string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: s}
}

func numberAttr(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func pkAttr(pk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"pk": stringAttr(pk)}
}

func dynamoItem(e Entity) (map[string]types.AttributeValue, error) {
	key := e.EntityKey()
	if err := checkKey(key); err != nil {
		return nil, err
	}
	entity, err := attributevalue.MarshalMap(e)
	if err != nil {
		return nil, fmt.Errorf("database: encode %s: %w", key, err)
	}
	var ancestors []string
	for _, a := range key.Ancestors() {
		ancestors = append(ancestors, a.Encode())
	}
	ancestorsAttr, err := attributevalue.MarshalList(ancestors)
	if err != nil {
		return nil, fmt.Errorf("database: encode %s: %w", key, err)
	}
	return map[string]types.AttributeValue{
		"pk":        stringAttr(key.Encode()),
		"kind":      stringAttr(key.Kind),
		"ancestors": &types.AttributeValueMemberL{Value: ancestorsAttr},
		"entity":    &types.AttributeValueMemberM{Value: entity},
	}, nil
}

func loadDynamoItem(item map[string]types.AttributeValue, dst Entity) error {
	pk, ok := item["pk"].(*types.AttributeValueMemberS)
	if !ok {
		return fmt.Errorf("database: item without pk")
	}
	key, err := model.DecodeKey(pk.Value)
	if err != nil {
		return err
	}
	entity, ok := item["entity"].(*types.AttributeValueMemberM)
	if !ok {
		return fmt.Errorf("database: %s has no entity attribute", key)
	}
	if err := attributevalue.UnmarshalMap(entity.Value, dst); err != nil {
		return fmt.Errorf("database: decode %s: %w", key, err)
	}
	dst.SetEntityKey(key)
	return nil
}

func (s *DynamoStore) getItem(ctx context.Context, pk string) (map[string]types.AttributeValue, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            pkAttr(pk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	return result.Item, nil
}

func (s *DynamoStore) Get(ctx context.Context, key *model.Key, dst Entity) error {
	if err := checkKey(key); err != nil {
		return err
	}
	item, err := s.getItem(ctx, key.Encode())
	if err != nil {
		return fmt.Errorf("database: get %s: %w", key, err)
	}
	if item == nil {
		return ErrNoSuchEntity
	}
	return loadDynamoItem(item, dst)
}

func (s *DynamoStore) Put(ctx context.Context, e Entity) error {
	item, err := dynamoItem(e)
	if err != nil {
		return err
	}
	key := e.EntityKey()
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(s.table), Item: item}},
			{Update: s.bumpGroup(key.Root().Encode(), nil)},
		},
	})
	if err != nil {
		return fmt.Errorf("database: put %s: %w", key, classifyDynamoError(err))
	}
	return nil
}

// bumpGroup increments a group version. With expected set, the update only
// applies if the version still has that value.
func (s *DynamoStore) bumpGroup(root string, expected *int64) *types.Update {
	u := &types.Update{
		TableName:                aws.String(s.table),
		Key:                      pkAttr(groupPrefix + root),
		UpdateExpression:         aws.String("ADD #version :one"),
		ExpressionAttributeNames: map[string]string{"#version": "version"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": numberAttr(1),
		},
	}
	if expected != nil {
		cond, values := groupCondition(*expected)
		u.ConditionExpression = aws.String(cond)
		for k, v := range values {
			u.ExpressionAttributeValues[k] = v
		}
	}
	return u
}

// groupCondition requires a group item to still hold version. A group never
// written before has no item.
func groupCondition(version int64) (string, map[string]types.AttributeValue) {
	if version == 0 {
		return "attribute_not_exists(pk)", nil
	}
	return "#version = :expected", map[string]types.AttributeValue{":expected": numberAttr(version)}
}

func (s *DynamoStore) groupVersion(ctx context.Context, root string) (int64, error) {
	item, err := s.getItem(ctx, groupPrefix+root)
	if err != nil {
		return 0, err
	}
	return itemNumber(item, "version"), nil
}

func itemNumber(item map[string]types.AttributeValue, name string) int64 {
	if v, ok := item[name].(*types.AttributeValueMemberN); ok {
		n, _ := strconv.ParseInt(v.Value, 10, 64)
		return n
	}
	return 0
}

func (s *DynamoStore) AllocateID(ctx context.Context, kind string, parent *model.Key) (int64, error) {
	result, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.table),
		Key:                      pkAttr(counterPrefix + counterName(kind, parent)),
		UpdateExpression:         aws.String("ADD #seq :one"),
		ExpressionAttributeNames: map[string]string{"#seq": "seq"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": numberAttr(1),
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("database: allocate %s id: %w", kind, err)
	}
	return itemNumber(result.Attributes, "seq"), nil
}

func (s *DynamoStore) Run(ctx context.Context, q *Query) Iterator {
	return &dynamoIterator{ctx: ctx, s: s, q: q}
}

func (s *DynamoStore) Close(ctx context.Context) error {
	return nil
}

// scanInput selects the items of q's kind and ancestor. Property filters and
// ordering run in process over the decoded entities.
func (s *DynamoStore) scanInput(q *Query) *dynamodb.ScanInput {
	filter := "#kind = :kind"
	values := map[string]types.AttributeValue{":kind": stringAttr(q.Kind())}
	if a := q.AncestorKey(); a != nil {
		filter += " AND contains(#ancestors, :ancestor)"
		values[":ancestor"] = stringAttr(a.Encode())
	}
	return &dynamodb.ScanInput{
		TableName:                 aws.String(s.table),
		FilterExpression:          aws.String(filter),
		ExpressionAttributeNames:  map[string]string{"#kind": "kind", "#ancestors": "ancestors"},
		ExpressionAttributeValues: values,
		ConsistentRead:            aws.Bool(true),
	}
}

type dynamoIterator struct {
	ctx     context.Context
	s       *DynamoStore
	q       *Query
	results []candidate
	pos     int
	started bool
}

func (it *dynamoIterator) fetch() error {
	input := it.s.scanInput(it.q)
	var all []candidate
	for {
		out, err := it.s.client.Scan(it.ctx, input)
		if err != nil {
			return fmt.Errorf("database: query %s: %w", it.q.Kind(), err)
		}
		for _, item := range out.Items {
			e, err := newEntity(it.q.Kind())
			if err != nil {
				return err
			}
			if err := loadDynamoItem(item, e); err != nil {
				return err
			}
			item := item
			all = append(all, candidate{
				key:   e.EntityKey(),
				props: copyProperties(e.Properties()),
				load:  func(dst Entity) error { return loadDynamoItem(item, dst) },
			})
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	it.results = selectCandidates(it.q, all)
	return nil
}

func (it *dynamoIterator) Next(dst Entity) error {
	if !it.started {
		it.started = true
		if err := it.fetch(); err != nil {
			return err
		}
	}
	if it.pos >= len(it.results) {
		return Done
	}
	c := it.results[it.pos]
	it.pos++
	return c.load(dst)
}

func (s *DynamoStore) RunInTransaction(ctx context.Context, fn func(tx Transaction) error, opts ...TransactionOption) error {
	tx := &dynamoTx{
		ctx:    ctx,
		s:      s,
		groups: newGroupSet(applyTxOptions(opts)),
		seen:   make(map[string]int64),
		writes: make(map[string]int),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

type dynamoTx struct {
	ctx    context.Context
	s      *DynamoStore
	groups *groupSet
	seen   map[string]int64
	roots  []string
	order  []map[string]types.AttributeValue
	writes map[string]int
	dirty  map[string]bool
}

func (tx *dynamoTx) enter(key *model.Key) error {
	root, isNew, err := tx.groups.enter(key)
	if err != nil {
		return err
	}
	if !isNew {
		return nil
	}
	version, err := tx.s.groupVersion(tx.ctx, root)
	if err != nil {
		return fmt.Errorf("database: read group %s: %w", key.Root(), err)
	}
	tx.seen[root] = version
	tx.roots = append(tx.roots, root)
	return nil
}

func (tx *dynamoTx) Get(key *model.Key, dst Entity) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := tx.enter(key); err != nil {
		return err
	}
	if i, ok := tx.writes[key.Encode()]; ok {
		return loadDynamoItem(tx.order[i], dst)
	}
	return tx.s.Get(tx.ctx, key, dst)
}

func (tx *dynamoTx) Put(e Entity) error {
	item, err := dynamoItem(e)
	if err != nil {
		return err
	}
	key := e.EntityKey()
	if err := tx.enter(key); err != nil {
		return err
	}
	if tx.dirty == nil {
		tx.dirty = make(map[string]bool)
	}
	tx.dirty[key.Root().Encode()] = true

	enc := key.Encode()
	if i, ok := tx.writes[enc]; ok {
		tx.order[i] = item
		return nil
	}
	tx.writes[enc] = len(tx.order)
	tx.order = append(tx.order, item)
	return nil
}

// commit writes every buffered item and, for each touched group, either bumps
// its version (written groups) or checks it is unchanged (read-only groups).
func (tx *dynamoTx) commit() error {
	if len(tx.order) == 0 && len(tx.roots) == 0 {
		return nil
	}
	items := make([]types.TransactWriteItem, 0, len(tx.order)+len(tx.roots))
	for _, item := range tx.order {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{TableName: aws.String(tx.s.table), Item: item},
		})
	}
	for _, root := range tx.roots {
		version := tx.seen[root]
		if tx.dirty[root] {
			items = append(items, types.TransactWriteItem{Update: tx.s.bumpGroup(root, &version)})
			continue
		}
		cond, values := groupCondition(version)
		check := &types.ConditionCheck{
			TableName:           aws.String(tx.s.table),
			Key:                 pkAttr(groupPrefix + root),
			ConditionExpression: aws.String(cond),
		}
		if values != nil {
			check.ExpressionAttributeNames = map[string]string{"#version": "version"}
			check.ExpressionAttributeValues = values
		}
		items = append(items, types.TransactWriteItem{ConditionCheck: check})
	}

	_, err := tx.s.client.TransactWriteItems(tx.ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return classifyDynamoError(err)
}

// classifyDynamoError maps cancelled transactions caused by a failed version
// condition or a concurrent transaction to ErrContention.
func classifyDynamoError(err error) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for _, reason := range txErr.CancellationReasons {
			if reason.Code == nil {
				continue
			}
			switch *reason.Code {
			case "ConditionalCheckFailed", "TransactionConflict":
				return fmt.Errorf("%w: %v", ErrContention, err)
			}
		}
	}

	var conflict *types.TransactionConflictException
	if errors.As(err, &conflict) {
		return fmt.Errorf("%w: %v", ErrContention, err)
	}
	return err
}
