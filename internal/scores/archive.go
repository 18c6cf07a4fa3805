package scores

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/robalobadob/tradle/internal/game"
)

// Archive receives a copy of every newly stored report.
type Archive interface {
	Put(ctx context.Context, rec Record) error
}

// Record is the archived form of a report: no raw IP, no profile.
type Record struct {
	ID          string    `dynamodbav:"id"`
	Game        string    `dynamodbav:"game"`
	Day         string    `dynamodbav:"day"`
	Answer      string    `dynamodbav:"answer"`
	Attempts    int       `dynamodbav:"attempts"`
	Won         bool      `dynamodbav:"won"`
	UserID      string    `dynamodbav:"user_id,omitempty"`
	IPHash      string    `dynamodbav:"ip_hash,omitempty"`
	SubmittedAt time.Time `dynamodbav:"submitted_at"`
	Distances   []int     `dynamodbav:"distances"`
}

// newRecord flattens r; ipHash is the digest computed by the store.
func newRecord(r game.Report, ipHash string) Record {
	rec := Record{
		ID:          r.ID,
		Game:        r.Game,
		Day:         r.Date,
		Answer:      r.Answer.Code,
		Attempts:    len(r.Guesses),
		Won:         r.Won,
		IPHash:      ipHash,
		SubmittedAt: r.SubmittedAt.UTC(),
		Distances:   make([]int, 0, len(r.Guesses)),
	}
	if r.User != nil {
		rec.UserID = r.User.ID
	}
	for _, g := range r.Guesses {
		rec.Distances = append(rec.Distances, g.Distance)
	}
	return rec
}

// DynamoArchive appends records to an existing DynamoDB table keyed by "id".
// The table is never created or modified.
type DynamoArchive struct {
	client *dynamodb.Client
	table  string
}

// NewDynamoArchive loads the default AWS configuration for region.
func NewDynamoArchive(ctx context.Context, table, region string) (*DynamoArchive, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &DynamoArchive{client: dynamodb.NewFromConfig(cfg), table: table}, nil
}

// Put writes rec; the same id overwrites the same item.
func (a *DynamoArchive) Put(ctx context.Context, rec Record) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return err
	}
	_, err = a.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(a.table),
		Item:      item,
	})
	return err
}
