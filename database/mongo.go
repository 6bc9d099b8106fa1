package database

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/sfallmann/conf-central/model"
)

const (
	entitiesCollection = "entities"
	groupsCollection   = "entity_groups"
	countersCollection = "counters"

	// writeConflictCode is the server code for a write conflict inside a transaction.
	writeConflictCode = 112
)

// mongoDoc is the stored shape of an entity. Queries run against the fields
// of the embedded entity document.
type mongoDoc struct {
	ID        string   `bson:"_id"`
	Kind      string   `bson:"kind"`
	Ancestors []string `bson:"ancestors"`
	Entity    bson.Raw `bson:"entity"`
}

// MongoStore keeps entities in one collection. Every transactional write also
// bumps a per-group version document, so two transactions writing the same
// entity group always conflict on the server.
type MongoStore struct {
	client   *mongo.Client
	entities *mongo.Collection
	groups   *mongo.Collection
	counters *mongo.Collection
}

// OpenMongo connects to uri and checks the server is reachable. Transactions
// need a replica set or sharded cluster.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to the db: %v", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("db is not available: %v", err)
	}

	db := client.Database(database)
	return &MongoStore{
		client:   client,
		entities: db.Collection(entitiesCollection),
		groups:   db.Collection(groupsCollection),
		counters: db.Collection(countersCollection),
	}, nil
}

// Client exposes the connection so other components can share it.
func (s *MongoStore) Client() *mongo.Client {
	return s.client
}

// EnsureIndexes creates the index used by kind and ancestor queries.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.entities.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "ancestors", Value: 1}},
		Options: options.Index().SetName("kind_ancestors"),
	})
	if err != nil {
		return fmt.Errorf("database: create indexes: %w", err)
	}
	return nil
}

func newMongoDoc(e Entity) (*mongoDoc, error) {
	key := e.EntityKey()
	if err := checkKey(key); err != nil {
		return nil, err
	}
	raw, err := bson.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("database: encode %s: %w", key, err)
	}
	doc := &mongoDoc{ID: key.Encode(), Kind: key.Kind, Entity: raw}
	for _, a := range key.Ancestors() {
		doc.Ancestors = append(doc.Ancestors, a.Encode())
	}
	return doc, nil
}

func (d *mongoDoc) load(dst Entity) error {
	key, err := model.DecodeKey(d.ID)
	if err != nil {
		return err
	}
	if err := bson.Unmarshal(d.Entity, dst); err != nil {
		return fmt.Errorf("database: decode %s: %w", key, err)
	}
	dst.SetEntityKey(key)
	return nil
}

func (s *MongoStore) get(ctx context.Context, key *model.Key, dst Entity) error {
	if err := checkKey(key); err != nil {
		return err
	}
	var doc mongoDoc
	err := s.entities.FindOne(ctx, bson.D{{Key: "_id", Value: key.Encode()}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNoSuchEntity
	}
	if err != nil {
		return fmt.Errorf("database: get %s: %w", key, err)
	}
	return doc.load(dst)
}

func (s *MongoStore) put(ctx context.Context, e Entity) (*mongoDoc, error) {
	doc, err := newMongoDoc(e)
	if err != nil {
		return nil, err
	}
	_, err = s.entities.ReplaceOne(ctx, bson.D{{Key: "_id", Value: doc.ID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("database: put %s: %w", e.EntityKey(), err)
	}
	return doc, nil
}

func (s *MongoStore) bumpGroup(ctx context.Context, root string) error {
	_, err := s.groups.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: root}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "version", Value: int64(1)}}}},
		options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) Get(ctx context.Context, key *model.Key, dst Entity) error {
	return s.get(ctx, key, dst)
}

func (s *MongoStore) Put(ctx context.Context, e Entity) error {
	doc, err := s.put(ctx, e)
	if err != nil {
		return err
	}
	return s.bumpGroup(ctx, doc.Ancestors[0])
}

func (s *MongoStore) AllocateID(ctx context.Context, kind string, parent *model.Key) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: counterName(kind, parent)}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("database: allocate %s id: %w", kind, err)
	}
	return counter.Seq, nil
}

func (s *MongoStore) Run(ctx context.Context, q *Query) Iterator {
	return &mongoIterator{ctx: ctx, s: s, q: q}
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var mongoOperators = map[Operator]string{
	Equal:          "$eq",
	NotEqual:       "$ne",
	GreaterThan:    "$gt",
	GreaterOrEqual: "$gte",
	LessThan:       "$lt",
	LessOrEqual:    "$lte",
}

func entityField(field string) string {
	return "entity." + field
}

// mongoFilter translates q into a find filter. Missing properties never match
// a filter or an order, as in the in-process backends.
func mongoFilter(q *Query) bson.D {
	and := bson.A{bson.D{{Key: "kind", Value: q.Kind()}}}
	if a := q.AncestorKey(); a != nil {
		and = append(and, bson.D{{Key: "ancestors", Value: a.Encode()}})
	}
	for _, f := range q.Filters() {
		cond := bson.D{{Key: mongoOperators[f.Op], Value: f.Value}}
		if f.Op == NotEqual {
			cond = append(cond, bson.E{Key: "$exists", Value: true})
		}
		and = append(and, bson.D{{Key: entityField(f.Field), Value: cond}})
	}
	for _, o := range q.Orders() {
		and = append(and, bson.D{{Key: entityField(o.Field), Value: bson.D{{Key: "$exists", Value: true}}}})
	}
	return bson.D{{Key: "$and", Value: and}}
}

func mongoSort(q *Query) bson.D {
	var sort bson.D
	for _, o := range q.Orders() {
		dir := 1
		if o.Descending {
			dir = -1
		}
		sort = append(sort, bson.E{Key: entityField(o.Field), Value: dir})
	}
	return append(sort, bson.E{Key: "_id", Value: 1})
}

func mongoProjection(q *Query) bson.D {
	fields := q.Projection()
	if len(fields) == 0 {
		return nil
	}
	proj := bson.D{{Key: "_id", Value: 1}}
	for _, f := range fields {
		proj = append(proj, bson.E{Key: entityField(f), Value: 1})
	}
	return proj
}

type mongoIterator struct {
	ctx    context.Context
	s      *MongoStore
	q      *Query
	cursor *mongo.Cursor
}

func (it *mongoIterator) Next(dst Entity) error {
	if it.cursor == nil {
		opts := options.Find().SetSort(mongoSort(it.q))
		if proj := mongoProjection(it.q); proj != nil {
			opts.SetProjection(proj)
		}
		if n := it.q.LimitValue(); n > 0 {
			opts.SetLimit(int64(n))
		}
		cur, err := it.s.entities.Find(it.ctx, mongoFilter(it.q), opts)
		if err != nil {
			return fmt.Errorf("database: query %s: %w", it.q.Kind(), err)
		}
		it.cursor = cur
	}

	if !it.cursor.Next(it.ctx) {
		err := it.cursor.Err()
		it.cursor.Close(it.ctx)
		if err != nil {
			return fmt.Errorf("database: query %s: %w", it.q.Kind(), err)
		}
		return Done
	}
	var doc mongoDoc
	if err := it.cursor.Decode(&doc); err != nil {
		return fmt.Errorf("database: query %s: %w", it.q.Kind(), err)
	}
	return doc.load(dst)
}

func (s *MongoStore) RunInTransaction(ctx context.Context, fn func(tx Transaction) error, opts ...TransactionOption) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("database: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.New(writeconcern.WMajority()))

	err = mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sess.StartTransaction(txOpts); err != nil {
			return err
		}
		tx := &mongoTx{
			sc:     sc,
			s:      s,
			groups: newGroupSet(applyTxOptions(opts)),
			bumped: make(map[string]bool),
		}
		if err := fn(tx); err != nil {
			sess.AbortTransaction(sc)
			return err
		}
		return sess.CommitTransaction(sc)
	})
	return classifyMongoError(err)
}

// classifyMongoError maps transaction conflicts reported by the server to
// ErrContention and leaves every other error untouched.
func classifyMongoError(err error) error {
	if err == nil {
		return nil
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		if se.HasErrorLabel("TransientTransactionError") ||
			se.HasErrorLabel("UnknownTransactionCommitResult") ||
			se.HasErrorCode(writeConflictCode) {
			return fmt.Errorf("%w: %v", ErrContention, err)
		}
	}
	return err
}

type mongoTx struct {
	sc     mongo.SessionContext
	s      *MongoStore
	groups *groupSet
	bumped map[string]bool
}

func (tx *mongoTx) Get(key *model.Key, dst Entity) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if _, _, err := tx.groups.enter(key); err != nil {
		return err
	}
	return tx.s.get(tx.sc, key, dst)
}

func (tx *mongoTx) Put(e Entity) error {
	key := e.EntityKey()
	if err := checkKey(key); err != nil {
		return err
	}
	root, _, err := tx.groups.enter(key)
	if err != nil {
		return err
	}
	if _, err := tx.s.put(tx.sc, e); err != nil {
		return err
	}
	if tx.bumped[root] {
		return nil
	}
	tx.bumped[root] = true
	return tx.s.bumpGroup(tx.sc, root)
}
