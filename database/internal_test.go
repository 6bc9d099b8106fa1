package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sfallmann/conf-central/model"
)

// --- mongo query translation ---

func TestMongoFilter(t *testing.T) {
	parent := model.ProfileKey("alice")
	q := NewQuery(model.KindConference).
		Ancestor(parent).
		Filter("city", Equal, "London").
		Filter("month", NotEqual, 6).
		Order("month")

	expected := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "kind", Value: model.KindConference}},
		bson.D{{Key: "ancestors", Value: parent.Encode()}},
		bson.D{{Key: "entity.city", Value: bson.D{{Key: "$eq", Value: "London"}}}},
		bson.D{{Key: "entity.month", Value: bson.D{{Key: "$ne", Value: int64(6)}, {Key: "$exists", Value: true}}}},
		bson.D{{Key: "entity.month", Value: bson.D{{Key: "$exists", Value: true}}}},
	}}}
	assert.Equal(t, expected, mongoFilter(q))
}

func TestMongoSort(t *testing.T) {
	q := NewQuery(model.KindConference).Order("seatsAvailable").Order("-name")

	expected := bson.D{
		{Key: "entity.seatsAvailable", Value: 1},
		{Key: "entity.name", Value: -1},
		{Key: "_id", Value: 1},
	}
	assert.Equal(t, expected, mongoSort(q))
}

func TestMongoProjection(t *testing.T) {
	assert.Nil(t, mongoProjection(NewQuery(model.KindConference)))

	q := NewQuery(model.KindConference).Project("name")
	assert.Equal(t, bson.D{{Key: "_id", Value: 1}, {Key: "entity.name", Value: 1}}, mongoProjection(q))
}

func TestMongoDocRoundTrip(t *testing.T) {
	key := model.NewIDKey(model.KindSession, 3, model.NewIDKey(model.KindConference, 7, model.ProfileKey("alice")))
	session := &model.Session{Key: key, Name: "Intro", Speaker: "Rob", Highlights: []string{"go"}}

	doc, err := newMongoDoc(session)
	require.NoError(t, err)
	assert.Equal(t, key.Encode(), doc.ID)
	assert.Equal(t, model.KindSession, doc.Kind)
	assert.Len(t, doc.Ancestors, 3)
	assert.Equal(t, key.Root().Encode(), doc.Ancestors[0])

	var got model.Session
	require.NoError(t, doc.load(&got))
	assert.Equal(t, "Intro", got.Name)
	assert.Equal(t, []string{"go"}, got.Highlights)
	assert.True(t, key.Equal(got.Key))
}

func TestClassifyMongoError(t *testing.T) {
	transient := mongo.CommandError{Code: 251, Labels: []string{"TransientTransactionError"}}
	writeConflict := mongo.CommandError{Code: writeConflictCode}
	other := mongo.CommandError{Code: 2}

	assert.NoError(t, classifyMongoError(nil))
	assert.ErrorIs(t, classifyMongoError(transient), ErrContention)
	assert.ErrorIs(t, classifyMongoError(fmt.Errorf("put: %w", writeConflict)), ErrContention)
	assert.NotErrorIs(t, classifyMongoError(other), ErrContention)
	assert.ErrorIs(t, classifyMongoError(ErrCrossGroup), ErrCrossGroup)
}

// --- dynamodb helpers ---

func TestDynamoItemRoundTrip(t *testing.T) {
	key := model.NewIDKey(model.KindConference, 7, model.ProfileKey("alice"))
	conf := &model.Conference{Key: key, Name: "GopherCon", Topics: []string{"Go"}, MaxAttendees: 10, SeatsAvailable: 4}

	item, err := dynamoItem(conf)
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberS{Value: key.Encode()}, item["pk"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: model.KindConference}, item["kind"])

	var got model.Conference
	require.NoError(t, loadDynamoItem(item, &got))
	assert.Equal(t, "GopherCon", got.Name)
	assert.Equal(t, 4, got.SeatsAvailable)
	assert.True(t, key.Equal(got.Key))

	_, err = dynamoItem(&model.Conference{Key: model.NewIDKey(model.KindConference, 0, nil)})
	assert.ErrorIs(t, err, ErrIncompleteKey)
}

func TestGroupCondition(t *testing.T) {
	cond, values := groupCondition(0)
	assert.Equal(t, "attribute_not_exists(pk)", cond)
	assert.Nil(t, values)

	cond, values = groupCondition(4)
	assert.Equal(t, "#version = :expected", cond)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "4"}, values[":expected"])
}

func TestBumpGroup(t *testing.T) {
	s := NewDynamo(nil, "conference_central")

	u := s.bumpGroup("root", nil)
	assert.Nil(t, u.ConditionExpression)
	assert.Equal(t, "ADD #version :one", aws.ToString(u.UpdateExpression))

	version := int64(2)
	u = s.bumpGroup("root", &version)
	assert.Equal(t, "#version = :expected", aws.ToString(u.ConditionExpression))
	assert.Contains(t, u.ExpressionAttributeValues, ":expected")
	assert.Equal(t, &types.AttributeValueMemberS{Value: groupPrefix + "root"}, u.Key["pk"])
}

func TestScanInput(t *testing.T) {
	s := NewDynamo(nil, "conference_central")

	in := s.scanInput(NewQuery(model.KindSession))
	assert.Equal(t, "#kind = :kind", aws.ToString(in.FilterExpression))

	parent := model.NewIDKey(model.KindConference, 7, model.ProfileKey("alice"))
	in = s.scanInput(NewQuery(model.KindSession).Ancestor(parent))
	assert.Equal(t, "#kind = :kind AND contains(#ancestors, :ancestor)", aws.ToString(in.FilterExpression))
	assert.Equal(t, &types.AttributeValueMemberS{Value: parent.Encode()}, in.ExpressionAttributeValues[":ancestor"])
}

func TestClassifyDynamoError(t *testing.T) {
	canceled := func(codes ...string) error {
		var reasons []types.CancellationReason
		for _, c := range codes {
			reasons = append(reasons, types.CancellationReason{Code: aws.String(c)})
		}
		return &types.TransactionCanceledException{CancellationReasons: reasons}
	}

	assert.NoError(t, classifyDynamoError(nil))
	assert.ErrorIs(t, classifyDynamoError(canceled("None", "ConditionalCheckFailed")), ErrContention)
	assert.ErrorIs(t, classifyDynamoError(canceled("TransactionConflict")), ErrContention)
	assert.ErrorIs(t, classifyDynamoError(&types.TransactionConflictException{}), ErrContention)
	assert.NotErrorIs(t, classifyDynamoError(canceled("ValidationError")), ErrContention)

	plain := errors.New("throttled")
	assert.Equal(t, plain, classifyDynamoError(plain))
}

// --- shared matching ---

func TestMatches(t *testing.T) {
	props := model.Properties{
		"city":   "London",
		"topics": []string{"Go", "Cloud"},
		"month":  int64(6),
	}

	tests := []struct {
		filter   Filter
		expected bool
	}{
		{Filter{"city", Equal, "London"}, true},
		{Filter{"city", NotEqual, "London"}, false},
		{Filter{"city", GreaterThan, "Berlin"}, true},
		{Filter{"topics", Equal, "Cloud"}, true},
		{Filter{"topics", Equal, "Web"}, false},
		{Filter{"topics", NotEqual, "Go"}, true},
		{Filter{"month", GreaterOrEqual, int64(6)}, true},
		{Filter{"month", LessThan, int64(6)}, false},
		{Filter{"month", Equal, "6"}, false},
		{Filter{"maxAttendees", Equal, int64(0)}, false},
	}

	for _, test := range tests {
		assert.Equalf(t, test.expected, matches(props, test.filter), "%s %s %v", test.filter.Field, test.filter.Op, test.filter.Value)
	}
}

func TestOperatorInequality(t *testing.T) {
	assert.False(t, Equal.Inequality())
	for _, op := range []Operator{GreaterThan, GreaterOrEqual, LessThan, LessOrEqual, NotEqual} {
		assert.True(t, op.Inequality())
	}
}
