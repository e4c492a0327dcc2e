package projects

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoCatalog
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoCatalog stores projects in a DynamoDB table keyed by "id"
type DynamoCatalog struct {
	client DynamoAPI
	table  string
	now    func() time.Time
}

// NewDynamoCatalog creates a catalog over table
func NewDynamoCatalog(client DynamoAPI, table string) *DynamoCatalog {
	return &DynamoCatalog{client: client, table: table, now: time.Now}
}

// dynamoItem is the stored shape. Decimals are kept as strings so no
// precision is lost through DynamoDB number handling.
type dynamoItem struct {
	ID                       string    `dynamodbav:"id"`
	Name                     string    `dynamodbav:"name"`
	Region                   string    `dynamodbav:"region,omitempty"`
	Status                   string    `dynamodbav:"status"`
	PricePerCredit           string    `dynamodbav:"price_per_credit"`
	ImpactQuantity           string    `dynamodbav:"impact_quantity"`
	VerifiedByAutomatedCheck bool      `dynamodbav:"verified_by_automated_check"`
	Latitude                 float64   `dynamodbav:"latitude"`
	Longitude                float64   `dynamodbav:"longitude"`
	RiskScore                float64   `dynamodbav:"risk_score"`
	SatelliteIndex           float64   `dynamodbav:"satellite_index"`
	Narrative                string    `dynamodbav:"narrative,omitempty"`
	Metadata                 string    `dynamodbav:"metadata,omitempty"`
	CreatedAt                time.Time `dynamodbav:"created_at"`
	UpdatedAt                time.Time `dynamodbav:"updated_at"`
}

func toDynamoItem(p *Project) dynamoItem {
	return dynamoItem{
		ID:                       p.ID,
		Name:                     p.Name,
		Region:                   p.Region,
		Status:                   string(p.Status),
		PricePerCredit:           p.PricePerCredit.String(),
		ImpactQuantity:           p.ImpactQuantity.String(),
		VerifiedByAutomatedCheck: p.VerifiedByAutomatedCheck,
		Latitude:                 p.Latitude,
		Longitude:                p.Longitude,
		RiskScore:                p.RiskScore,
		SatelliteIndex:           p.SatelliteIndex,
		Narrative:                p.Narrative,
		Metadata:                 string(p.Metadata),
		CreatedAt:                p.CreatedAt,
		UpdatedAt:                p.UpdatedAt,
	}
}

func (it dynamoItem) toProject() (*Project, error) {
	price, err := decimal.NewFromString(it.PricePerCredit)
	if err != nil {
		return nil, fmt.Errorf("project %s: invalid price %q: %w", it.ID, it.PricePerCredit, err)
	}
	quantity, err := decimal.NewFromString(it.ImpactQuantity)
	if err != nil {
		return nil, fmt.Errorf("project %s: invalid impact quantity %q: %w", it.ID, it.ImpactQuantity, err)
	}
	p := &Project{
		ID:                       it.ID,
		Name:                     it.Name,
		Region:                   it.Region,
		Status:                   Status(it.Status),
		PricePerCredit:           price,
		ImpactQuantity:           quantity,
		VerifiedByAutomatedCheck: it.VerifiedByAutomatedCheck,
		Latitude:                 it.Latitude,
		Longitude:                it.Longitude,
		RiskScore:                it.RiskScore,
		SatelliteIndex:           it.SatelliteIndex,
		Narrative:                it.Narrative,
		CreatedAt:                it.CreatedAt,
		UpdatedAt:                it.UpdatedAt,
	}
	if it.Metadata != "" {
		p.Metadata = datatypes.JSON(it.Metadata)
	}
	return p, nil
}

func unmarshalProject(av map[string]types.AttributeValue) (*Project, error) {
	var it dynamoItem
	if err := attributevalue.UnmarshalMap(av, &it); err != nil {
		return nil, fmt.Errorf("failed to decode project item: %w", err)
	}
	return it.toProject()
}

func (c *DynamoCatalog) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func (c *DynamoCatalog) Fetch(ctx context.Context, id string) (*Project, error) {
	out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.table),
		Key:            c.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch project: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrProjectNotFound
	}
	return unmarshalProject(out.Item)
}

// TryTransition relies on a ConditionExpression so DynamoDB rejects every
// writer that does not observe the expected status.
func (c *DynamoCatalog) TryTransition(ctx context.Context, id string, expected, next Status, fx SideEffects) (*Project, error) {
	if err := checkTransition(expected, next); err != nil {
		return nil, err
	}

	now, err := attributevalue.Marshal(c.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to encode timestamp: %w", err)
	}

	update := "SET #status = :next, updated_at = :now"
	values := map[string]types.AttributeValue{
		":expected": &types.AttributeValueMemberS{Value: string(expected)},
		":next":     &types.AttributeValueMemberS{Value: string(next)},
		":now":      now,
	}
	if fx.VerifiedByAutomatedCheck {
		update += ", verified_by_automated_check = :verified"
		values[":verified"] = &types.AttributeValueMemberBOOL{Value: true}
	}

	out, err := c.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(c.table),
		Key:                       c.key(id),
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String("attribute_exists(id) AND #status = :expected"),
		ExpressionAttributeNames:  map[string]string{"#status": "status"},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			if _, fetchErr := c.Fetch(ctx, id); fetchErr != nil {
				return nil, fetchErr
			}
			return nil, ErrPreconditionFailed
		}
		return nil, fmt.Errorf("failed to transition project: %w", err)
	}

	return unmarshalProject(out.Attributes)
}

func (c *DynamoCatalog) List(ctx context.Context, filter ListFilter) ([]*Project, error) {
	var (
		out       []*Project
		startKey  map[string]types.AttributeValue
		firstPage = true
	)
	for firstPage || len(startKey) > 0 {
		firstPage = false
		page, err := c.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(c.table),
			ExclusiveStartKey: startKey,
			ConsistentRead:    aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan projects: %w", err)
		}
		for _, item := range page.Items {
			p, err := unmarshalProject(item)
			if err != nil {
				return nil, err
			}
			if filter.matches(p) {
				out = append(out, p)
			}
		}
		startKey = page.LastEvaluatedKey
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return filter.page(out), nil
}

func (c *DynamoCatalog) Atomic() bool { return true }

// Seed writes projects with attribute_not_exists(id) so existing rows,
// including sold ones, are never overwritten.
func (c *DynamoCatalog) Seed(ctx context.Context, projects []*Project) (int, error) {
	now := c.now().UTC()
	inserted := 0
	for _, p := range projects {
		if err := validateSeed(p); err != nil {
			return inserted, err
		}
		cp := p.Clone()
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		cp.UpdatedAt = now

		item, err := attributevalue.MarshalMap(toDynamoItem(cp))
		if err != nil {
			return inserted, fmt.Errorf("failed to encode project %s: %w", cp.ID, err)
		}
		_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(c.table),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		})
		if err != nil {
			var condErr *types.ConditionalCheckFailedException
			if errors.As(err, &condErr) {
				continue
			}
			return inserted, fmt.Errorf("failed to seed project %s: %w", cp.ID, err)
		}
		inserted++
	}
	return inserted, nil
}

var (
	_ Gateway = (*DynamoCatalog)(nil)
	_ Seeder  = (*DynamoCatalog)(nil)
)
