package dynamodb

import (
	"context"
	"fmt"
	"time"

	"kynto-backend/application/ports"
	"kynto-backend/domain/plan"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// PlanRepository implements ports.PlanRepository using DynamoDB.
//
// Single-table layout: PK = USER#<owner>, SK = PLAN#<id>. Plan IDs are
// UUIDv7, so the sort key orders items by creation time and a descending
// query returns newest first. Scoping the partition key by owner means a
// delete can never touch another owner's plan.
type PlanRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewPlanRepository creates a new PlanRepository
func NewPlanRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.PlanRepository {
	return &PlanRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// planItem represents the DynamoDB item structure for a plan
type planItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	PlanID     string `dynamodbav:"PlanID"`
	UserID     string `dynamodbav:"UserID"`
	Title      string `dynamodbav:"Title"`
	Content    string `dynamodbav:"Content"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
}

func ownerKey(owner string) string { return fmt.Sprintf("USER#%s", owner) }
func planKey(id string) string     { return fmt.Sprintf("PLAN#%s", id) }

// Insert persists a plan to DynamoDB
func (r *PlanRepository) Insert(ctx context.Context, p *plan.Plan) error {
	item := planItem{
		PK:         ownerKey(p.Owner),
		SK:         planKey(p.ID),
		EntityType: "PLAN",
		PlanID:     p.ID,
		UserID:     p.Owner,
		Title:      p.Title,
		Content:    p.Content,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339Nano),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		r.logger.Error("Failed to save plan to DynamoDB",
			zap.Error(err),
			zap.String("planID", p.ID),
			zap.String("userID", p.Owner),
		)
		return fmt.Errorf("failed to save plan: %w", err)
	}

	return nil
}

// ListByOwner returns the owner's plans, newest first
func (r *PlanRepository) ListByOwner(ctx context.Context, owner string) ([]*plan.Plan, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(ownerKey(owner))).
		And(expression.Key("SK").BeginsWith("PLAN#"))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		// UUIDv7 sort keys ascend by creation time; reverse for newest first
		ScanIndexForward: aws.Bool(false),
	}

	var plans []*plan.Plan
	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			r.logger.Error("Failed to query plans",
				zap.Error(err),
				zap.String("userID", owner),
			)
			return nil, fmt.Errorf("failed to query plans: %w", err)
		}

		for _, av := range page.Items {
			var item planItem
			if err := attributevalue.UnmarshalMap(av, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
			}
			plans = append(plans, itemToPlan(item))
		}
	}

	return plans, nil
}

// Delete removes a plan matched on both id and owner. A missing item, or
// an id belonging to another owner, deletes nothing and returns nil.
func (r *PlanRepository) Delete(ctx context.Context, owner, id string) error {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": ownerKey(owner),
		"SK": planKey(id),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal plan key: %w", err)
	}

	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       key,
	}

	if _, err := r.client.DeleteItem(ctx, input); err != nil {
		r.logger.Error("Failed to delete plan",
			zap.Error(err),
			zap.String("planID", id),
			zap.String("userID", owner),
		)
		return fmt.Errorf("failed to delete plan: %w", err)
	}

	return nil
}

func itemToPlan(item planItem) *plan.Plan {
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		createdAt = time.Time{}
	}
	return &plan.Plan{
		ID:        item.PlanID,
		Owner:     item.UserID,
		Title:     item.Title,
		Content:   item.Content,
		CreatedAt: createdAt,
	}
}
