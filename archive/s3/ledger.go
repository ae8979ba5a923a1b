package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/RogerMarsh/solentware-base-sub000/archive"
)

// DynamoClient is the part of the DynamoDB API the ledger uses.
// *dynamodb.Client satisfies it.
type DynamoClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Ledger implements archive.Ledger on a DynamoDB table. Conditional
// writes give the compare-and-swap semantics S3 lacks, so concurrent
// writers of one guard name cannot both believe their snapshot is
// current.
//
// Table schema:
//   - Partition key: guard_name (string)
//   - Sort key: version (number), monotonically increasing
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name guard-ledger \
//	  --attribute-definitions AttributeName=guard_name,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=guard_name,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type Ledger struct {
	client DynamoClient
	table  string
	scope  string
}

var _ archive.Ledger = (*Ledger)(nil)

// NewLedger creates a ledger over table. scope lets several databases
// share one table; when non-empty it prefixes every guard name in the
// partition key (the database ID is a good choice).
func NewLedger(client DynamoClient, table, scope string) *Ledger {
	return &Ledger{
		client: client,
		table:  table,
		scope:  scope,
	}
}

func (l *Ledger) partition(name string) string {
	if l.scope == "" {
		return name
	}
	return l.scope + "/" + name
}

// Latest returns the newest committed version of name and its manifest
// object.
func (l *Ledger) Latest(ctx context.Context, name string) (uint64, string, bool, error) {
	resp, err := l.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(l.table),
		KeyConditionExpression: aws.String("guard_name = :name"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":name": &types.AttributeValueMemberS{Value: l.partition(name)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", false, fmt.Errorf("archive: ledger query: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", false, nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", false, errors.New("archive: ledger item has no version")
	}
	manifestAttr, ok := item["manifest"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", false, errors.New("archive: ledger item has no manifest")
	}
	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", false, fmt.Errorf("archive: ledger version: %w", err)
	}
	return version, manifestAttr.Value, true, nil
}

// Commit publishes manifest as the next version of name. Losing a race
// for that version reports archive.ErrLedgerConflict; the caller may
// re-read Latest and decide whether its snapshot still matters.
func (l *Ledger) Commit(ctx context.Context, name, manifest string) (uint64, error) {
	current, _, _, err := l.Latest(ctx, name)
	if err != nil {
		return 0, err
	}
	next := current + 1

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.table),
		Item: map[string]types.AttributeValue{
			"guard_name": &types.AttributeValueMemberS{Value: l.partition(name)},
			"version":    &types.AttributeValueMemberN{Value: strconv.FormatUint(next, 10)},
			"manifest":   &types.AttributeValueMemberS{Value: manifest},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return 0, archive.ErrLedgerConflict
		}
		return 0, fmt.Errorf("archive: ledger commit: %w", err)
	}
	return next, nil
}
