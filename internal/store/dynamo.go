package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Kluncker/rockville-cg-app/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoConfig names the tables and where to reach them. Every collection gets
// its own table: <prefix>tasks, <prefix>users, <prefix>events, <prefix>task_tokens.
type DynamoConfig struct {
	Region      string
	Endpoint    string
	TablePrefix string
}

type DynamoStore struct {
	db *dynamodb.Client

	tasksTable  string
	usersTable  string
	eventsTable string
	tokensTable string
}

// batchGetLimit is DynamoDB's per-request key cap for BatchGetItem.
const batchGetLimit = 100

func NewDynamoStore(ctx context.Context, c DynamoConfig) (*DynamoStore, error) {
	region := c.Region
	if region == "" {
		region = "us-east-2"
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
	})

	return newDynamoStore(client, c.TablePrefix), nil
}

func newDynamoStore(client *dynamodb.Client, tablePrefix string) *DynamoStore {
	return &DynamoStore{
		db:          client,
		tasksTable:  tablePrefix + "tasks",
		usersTable:  tablePrefix + "users",
		eventsTable: tablePrefix + "events",
		tokensTable: tablePrefix + "task_tokens",
	}
}

func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

func numAttr(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", n)}
}

func isConditionFailed(err error) bool {
	var cfe *types.ConditionalCheckFailedException
	return errors.As(err, &cfe)
}

func (s *DynamoStore) put(ctx context.Context, table string, v any) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return err
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	return err
}

// get unmarshals the item into out and reports whether it existed.
func (s *DynamoStore) get(ctx context.Context, table string, key map[string]types.AttributeValue, out any) (bool, error) {
	res, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, err
	}
	if res.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return false, err
	}
	return true, nil
}

// scan walks every page of a filtered scan.
func (s *DynamoStore) scan(ctx context.Context, in *dynamodb.ScanInput, out any) error {
	var items []map[string]types.AttributeValue
	p := dynamodb.NewScanPaginator(s.db, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return err
		}
		items = append(items, page.Items...)
	}
	return attributevalue.UnmarshalListOfMaps(items, out)
}

// ---- tasks ----

func (s *DynamoStore) PutTask(ctx context.Context, t models.Task) error {
	return s.put(ctx, s.tasksTable, t)
}

func (s *DynamoStore) GetTaskByID(ctx context.Context, taskID string) (*models.Task, error) {
	var t models.Task
	ok, err := s.get(ctx, s.tasksTable, strKey("id", taskID), &t)
	if err != nil || !ok {
		return nil, err
	}
	return &t, nil
}

func (s *DynamoStore) DeleteTask(ctx context.Context, taskID string) error {
	_, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tasksTable),
		Key:       strKey("id", taskID),
	})
	return err
}

func (s *DynamoStore) ListTasksByStatus(ctx context.Context, statuses ...string) ([]models.Task, error) {
	if len(statuses) == 0 {
		return []models.Task{}, nil
	}

	values := map[string]types.AttributeValue{}
	filter := ""
	for i, st := range statuses {
		ph := fmt.Sprintf(":s%d", i)
		values[ph] = &types.AttributeValueMemberS{Value: st}
		if i > 0 {
			filter += " OR "
		}
		filter += "#st = " + ph
	}

	var tasks []models.Task
	err := s.scan(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(s.tasksTable),
		FilterExpression:          aws.String(filter),
		ExpressionAttributeNames:  map[string]string{"#st": "status"},
		ExpressionAttributeValues: values,
	}, &tasks)
	return tasks, err
}

func (s *DynamoStore) ListTasksByEvent(ctx context.Context, eventID string) ([]models.Task, error) {
	var tasks []models.Task
	err := s.scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.tasksTable),
		FilterExpression: aws.String("event_id = :eid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":eid": &types.AttributeValueMemberS{Value: eventID},
		},
	}, &tasks)
	return tasks, err
}

// ListTasksByAssignees filters with IN, which takes at most 100 operands.
func (s *DynamoStore) ListTasksByAssignees(ctx context.Context, userIDs ...string) ([]models.Task, error) {
	tasks := []models.Task{}
	for start := 0; start < len(userIDs); start += batchGetLimit {
		end := min(start+batchGetLimit, len(userIDs))

		values := map[string]types.AttributeValue{}
		phs := make([]string, 0, end-start)
		for i, id := range userIDs[start:end] {
			ph := fmt.Sprintf(":u%d", i)
			values[ph] = &types.AttributeValueMemberS{Value: id}
			phs = append(phs, ph)
		}

		var page []models.Task
		err := s.scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(s.tasksTable),
			FilterExpression:          aws.String("assigned_to IN (" + strings.Join(phs, ", ") + ")"),
			ExpressionAttributeValues: values,
		}, &page)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, page...)
	}
	return tasks, nil
}

func (s *DynamoStore) UpdateTaskFields(ctx context.Context, taskID string, f TaskFields, nowMs int64) error {
	return s.updateTask(ctx, taskID,
		"SET title = :t, description = :d, event_date = :ed, assigned_to = :a, updated_at = :u",
		nil,
		map[string]types.AttributeValue{
			":t":  &types.AttributeValueMemberS{Value: f.Title},
			":d":  &types.AttributeValueMemberS{Value: f.Description},
			":ed": &types.AttributeValueMemberS{Value: f.EventDate},
			":a":  &types.AttributeValueMemberS{Value: f.AssignedTo},
			":u":  numAttr(nowMs),
		})
}

func (s *DynamoStore) TransitionTask(ctx context.Context, taskID, from, to, actorID string, nowMs int64) (bool, error) {
	var update string
	switch to {
	case models.StatusConfirmed:
		update = "SET #st = :to, confirmed_at = :at, confirmed_by = :by, updated_at = :at"
	case models.StatusDeclined:
		update = "SET #st = :to, declined_at = :at, declined_by = :by, updated_at = :at"
	default:
		return false, fmt.Errorf("transition to %q not supported", to)
	}

	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tasksTable),
		Key:       strKey("id", taskID),

		// Only move the task if nobody changed its status in between
		ConditionExpression: aws.String("#st = :from"),
		UpdateExpression:    aws.String(update),

		ExpressionAttributeNames: map[string]string{
			"#st": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":from": &types.AttributeValueMemberS{Value: from},
			":to":   &types.AttributeValueMemberS{Value: to},
			":by":   &types.AttributeValueMemberS{Value: actorID},
			":at":   numAttr(nowMs),
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *DynamoStore) AssignTask(ctx context.Context, taskID, assigneeID string, reminders *models.EmailReminders, nowMs int64) error {
	update := "SET assigned_to = :a, #st = :pending, updated_at = :u"
	values := map[string]types.AttributeValue{
		":a":       &types.AttributeValueMemberS{Value: assigneeID},
		":pending": &types.AttributeValueMemberS{Value: models.StatusPending},
		":u":       numAttr(nowMs),
	}
	if reminders != nil {
		av, err := attributevalue.Marshal(*reminders)
		if err != nil {
			return err
		}
		update += ", email_reminders = :er"
		values[":er"] = av
	}
	return s.updateTask(ctx, taskID, update, map[string]string{"#st": "status"}, values)
}

func (s *DynamoStore) ResetReminders(ctx context.Context, taskID string, reminders models.EmailReminders, nowMs int64) error {
	av, err := attributevalue.Marshal(reminders)
	if err != nil {
		return err
	}
	return s.updateTask(ctx, taskID,
		"SET email_reminders = :er, updated_at = :u",
		nil,
		map[string]types.AttributeValue{
			":er": av,
			":u":  numAttr(nowMs),
		})
}

func (s *DynamoStore) MarkAssignmentSent(ctx context.Context, taskID, assigneeID string, nowMs int64) error {
	return s.updateTask(ctx, taskID,
		"SET email_reminders.assignment_sent = :t, email_reminders.last_email_sent = :now, email_reminders.notified_assignee = :a",
		nil,
		map[string]types.AttributeValue{
			":t":   &types.AttributeValueMemberBOOL{Value: true},
			":now": numAttr(nowMs),
			":a":   &types.AttributeValueMemberS{Value: assigneeID},
		})
}

func (s *DynamoStore) MarkReminderSent(ctx context.Context, taskID string, flag models.ReminderFlag, nowMs int64) error {
	return s.updateTask(ctx, taskID,
		"SET email_reminders.#flag = :t, email_reminders.last_reminder_sent = :now",
		map[string]string{"#flag": string(flag)},
		map[string]types.AttributeValue{
			":t":   &types.AttributeValueMemberBOOL{Value: true},
			":now": numAttr(nowMs),
		})
}

func (s *DynamoStore) updateTask(
	ctx context.Context,
	taskID string,
	update string,
	names map[string]string,
	values map[string]types.AttributeValue,
) error {
	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tasksTable),
		Key:                       strKey("id", taskID),
		ConditionExpression:       aws.String("attribute_exists(id)"),
		UpdateExpression:          aws.String(update),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if isConditionFailed(err) {
		return ErrNoSuchItem
	}
	return err
}

// ---- users ----

func (s *DynamoStore) PutUser(ctx context.Context, u models.User) error {
	return s.put(ctx, s.usersTable, u)
}

func (s *DynamoStore) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	ok, err := s.get(ctx, s.usersTable, strKey("id", userID), &u)
	if err != nil || !ok {
		return nil, err
	}
	return &u, nil
}

func (s *DynamoStore) GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error) {
	users := []models.User{}
	seen := map[string]bool{}

	var keys []map[string]types.AttributeValue
	for _, id := range userIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		keys = append(keys, strKey("id", id))
	}

	for start := 0; start < len(keys); start += batchGetLimit {
		end := min(start+batchGetLimit, len(keys))
		request := map[string]types.KeysAndAttributes{
			s.usersTable: {Keys: keys[start:end]},
		}

		// BatchGetItem may hand back part of the request as unprocessed
		for len(request) > 0 {
			out, err := s.db.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return nil, err
			}
			var page []models.User
			if err := attributevalue.UnmarshalListOfMaps(out.Responses[s.usersTable], &page); err != nil {
				return nil, err
			}
			users = append(users, page...)
			request = out.UnprocessedKeys
		}
	}
	return users, nil
}

func (s *DynamoStore) ListUsersByRole(ctx context.Context, roles ...string) ([]models.User, error) {
	if len(roles) == 0 {
		return []models.User{}, nil
	}

	values := map[string]types.AttributeValue{}
	filter := ""
	for i, r := range roles {
		ph := fmt.Sprintf(":r%d", i)
		values[ph] = &types.AttributeValueMemberS{Value: r}
		if i > 0 {
			filter += " OR "
		}
		filter += "#role = " + ph
	}

	var users []models.User
	err := s.scan(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(s.usersTable),
		FilterExpression:          aws.String(filter),
		ExpressionAttributeNames:  map[string]string{"#role": "role"},
		ExpressionAttributeValues: values,
	}, &users)
	return users, err
}

func (s *DynamoStore) ListUsersByFamily(ctx context.Context, familyID string) ([]models.User, error) {
	var users []models.User
	err := s.scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.usersTable),
		FilterExpression: aws.String("family_id = :fid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":fid": &types.AttributeValueMemberS{Value: familyID},
		},
	}, &users)
	return users, err
}

// ---- events ----

func (s *DynamoStore) PutEvent(ctx context.Context, e models.Event) error {
	return s.put(ctx, s.eventsTable, e)
}

func (s *DynamoStore) GetEventByID(ctx context.Context, eventID string) (*models.Event, error) {
	var e models.Event
	ok, err := s.get(ctx, s.eventsTable, strKey("id", eventID), &e)
	if err != nil || !ok {
		return nil, err
	}
	return &e, nil
}

func (s *DynamoStore) DeleteEvent(ctx context.Context, eventID string) error {
	_, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.eventsTable),
		Key:       strKey("id", eventID),
	})
	return err
}

// ---- tokens ----

func (s *DynamoStore) PutToken(ctx context.Context, t models.ActionToken) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return err
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tokensTable),
		Item:      item,
		// a token string is never reissued
		ConditionExpression: aws.String("attribute_not_exists(#tok)"),
		ExpressionAttributeNames: map[string]string{
			"#tok": "token",
		},
	})
	return err
}

func (s *DynamoStore) FindUnusedToken(ctx context.Context, token string) (*models.ActionToken, error) {
	var t models.ActionToken
	ok, err := s.get(ctx, s.tokensTable, strKey("token", token), &t)
	if err != nil || !ok || t.Used {
		return nil, err
	}
	return &t, nil
}

func (s *DynamoStore) MarkTokenUsed(ctx context.Context, token string, nowMs int64) (bool, error) {
	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tokensTable),
		Key:       strKey("token", token),

		// Only one redeemer can observe used == false
		ConditionExpression: aws.String("attribute_exists(#tok) AND used = :false"),
		UpdateExpression:    aws.String("SET used = :true, used_at = :u"),

		ExpressionAttributeNames: map[string]string{
			"#tok": "token",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":true":  &types.AttributeValueMemberBOOL{Value: true},
			":u":     numAttr(nowMs),
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *DynamoStore) ListUnusedTokensForTask(ctx context.Context, taskID string) ([]models.ActionToken, error) {
	var tokens []models.ActionToken
	err := s.scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.tokensTable),
		FilterExpression: aws.String("task_id = :tid AND used = :false"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tid":   &types.AttributeValueMemberS{Value: taskID},
			":false": &types.AttributeValueMemberBOOL{Value: false},
		},
	}, &tokens)
	return tokens, err
}

var _ Store = (*DynamoStore)(nil)
