package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hardw419/ivr-system/internal/types"
	"github.com/rs/zerolog"
)

// DynamoDBStore implements Store using AWS DynamoDB. The single-assignment
// invariant on queue entries is enforced with ConditionExpressions, so two
// agents racing on Accept resolve at the storage layer, not in application
// code.
type DynamoDBStore struct {
	client *dynamodb.Client
	config DynamoConfig
	logger zerolog.Logger
}

// NewDynamoDBStore creates a new DynamoDB store
func NewDynamoDBStore(ctx context.Context, cfg DynamoConfig, logger zerolog.Logger) (*DynamoDBStore, error) {
	var client *dynamodb.Client

	if cfg.Mode == DynamoModeLocal {
		// For local mode, build the client directly without LoadDefaultConfig.
		// LoadDefaultConfig probes the EC2 IMDS endpoint which hangs when
		// static credentials are intended.
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	store := &DynamoDBStore{
		client: client,
		config: cfg,
		logger: logger,
	}

	if cfg.Mode == DynamoModeLocal {
		if err := CreateTablesIfNotExist(ctx, client, cfg, logger); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Msg("DynamoDB store initialized")

	return store, nil
}

// callItem is the stored shape of a CallRecord. Times are RFC3339 strings so
// items stay queryable from the console.
type callItem struct {
	CallID          string               `dynamodbav:"CallID"`
	OwnerID         string               `dynamodbav:"OwnerID"`
	CustomerPhone   string               `dynamodbav:"CustomerPhone"`
	CustomerName    string               `dynamodbav:"CustomerName,omitempty"`
	Status          string               `dynamodbav:"Status"`
	ProviderCallID  string               `dynamodbav:"ProviderCallID,omitempty"`
	CallSID         string               `dynamodbav:"CallSID,omitempty"`
	Duration        int                  `dynamodbav:"Duration"`
	Recording       *types.Recording     `dynamodbav:"Recording,omitempty"`
	Transcript      string               `dynamodbav:"Transcript,omitempty"`
	TranscriptTurns []transcriptTurnItem `dynamodbav:"TranscriptTurns,omitempty"`
	Summary         string               `dynamodbav:"Summary,omitempty"`
	Sentiment       string               `dynamodbav:"Sentiment,omitempty"`
	KeyPressed      string               `dynamodbav:"KeyPressed,omitempty"`
	TransferredTo   string               `dynamodbav:"TransferredTo,omitempty"`
	Transfer        *transferDetailsItem `dynamodbav:"Transfer,omitempty"`
	Cost            float64              `dynamodbav:"Cost"`
	Metadata        map[string]string    `dynamodbav:"Metadata,omitempty"`
	StartTime       string               `dynamodbav:"StartTime,omitempty"`
	EndTime         string               `dynamodbav:"EndTime,omitempty"`
	CreatedAt       string               `dynamodbav:"CreatedAt"`
}

type transcriptTurnItem struct {
	Role      string `dynamodbav:"Role"`
	Message   string `dynamodbav:"Message"`
	Timestamp string `dynamodbav:"Timestamp"`
}

type transferDetailsItem struct {
	AgentName    string `dynamodbav:"AgentName"`
	AgentPhone   string `dynamodbav:"AgentPhone"`
	TransferTime string `dynamodbav:"TransferTime"`
	Status       string `dynamodbav:"Status"`
	Duration     int    `dynamodbav:"Duration,omitempty"`
}

type queueItem struct {
	EntryID        string `dynamodbav:"EntryID"`
	OwnerID        string `dynamodbav:"OwnerID"`
	CallID         string `dynamodbav:"CallID,omitempty"`
	ProviderCallID string `dynamodbav:"ProviderCallID,omitempty"`
	CallSID        string `dynamodbav:"CallSID,omitempty"`
	CustomerPhone  string `dynamodbav:"CustomerPhone"`
	CustomerName   string `dynamodbav:"CustomerName,omitempty"`
	Source         string `dynamodbav:"Source"`
	KeyPressed     string `dynamodbav:"KeyPressed,omitempty"`
	Status         string `dynamodbav:"Status"`
	Priority       int    `dynamodbav:"Priority"`
	AssignedAgent  string `dynamodbav:"AssignedAgent,omitempty"`
	WaitStart      string `dynamodbav:"WaitStart"`
	AnswerTime     string `dynamodbav:"AnswerTime,omitempty"`
	EndTime        string `dynamodbav:"EndTime,omitempty"`
	WaitDuration   int    `dynamodbav:"WaitDuration,omitempty"`
	CallDuration   int    `dynamodbav:"CallDuration,omitempty"`
	Notes          string `dynamodbav:"Notes,omitempty"`
}

type agentItem struct {
	OwnerID     string `dynamodbav:"OwnerID"`
	AgentID     string `dynamodbav:"AgentID"`
	Name        string `dynamodbav:"Name"`
	PhoneNumber string `dynamodbav:"PhoneNumber"`
	TransferKey string `dynamodbav:"TransferKey"`
	Email       string `dynamodbav:"Email,omitempty"`
	Department  string `dynamodbav:"Department,omitempty"`
	IsAvailable bool   `dynamodbav:"IsAvailable"`
	CreatedAt   string `dynamodbav:"CreatedAt"`
}

func (s *DynamoDBStore) CreateCall(ctx context.Context, call *types.CallRecord) error {
	return s.putCall(ctx, call)
}

func (s *DynamoDBStore) SaveCall(ctx context.Context, call *types.CallRecord) error {
	return s.putCall(ctx, call)
}

func (s *DynamoDBStore) putCall(ctx context.Context, call *types.CallRecord) error {
	item, err := attributevalue.MarshalMap(callToItem(call))
	if err != nil {
		return fmt.Errorf("failed to marshal call record: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.CallsTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save call record: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) GetCall(ctx context.Context, id string) (*types.CallRecord, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.CallsTable),
		Key: map[string]dbtypes.AttributeValue{
			"CallID": &dbtypes.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get call record: %w", err)
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}
	var item callItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal call record: %w", err)
	}
	return callFromItem(item), nil
}

func (s *DynamoDBStore) GetCallByProviderID(ctx context.Context, providerCallID string) (*types.CallRecord, error) {
	return s.scanCall(ctx, expression.Name("ProviderCallID").Equal(expression.Value(providerCallID)))
}

func (s *DynamoDBStore) GetCallBySID(ctx context.Context, callSID string) (*types.CallRecord, error) {
	return s.scanCall(ctx, expression.Name("CallSID").Equal(expression.Value(callSID)))
}

// scanCall runs a filtered scan over the calls table. Call volume per owner
// is small enough that a scan beats maintaining extra GSIs here.
func (s *DynamoDBStore) scanCall(ctx context.Context, filter expression.ConditionBuilder) (*types.CallRecord, error) {
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}
	result, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(s.config.CallsTable),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan call records: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, ErrNotFound
	}
	var item callItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal call record: %w", err)
	}
	return callFromItem(item), nil
}

func (s *DynamoDBStore) CreateQueueEntry(ctx context.Context, entry *types.QueueEntry) error {
	item, err := attributevalue.MarshalMap(queueToItem(entry))
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.QueueTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save queue entry: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) GetQueueEntry(ctx context.Context, id string) (*types.QueueEntry, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.QueueTable),
		Key:       queueKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}
	var item queueItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue entry: %w", err)
	}
	return queueFromItem(item), nil
}

func (s *DynamoDBStore) GetQueueEntryBySID(ctx context.Context, callSID string) (*types.QueueEntry, error) {
	entries, err := s.scanQueue(ctx, expression.Name("CallSID").Equal(expression.Value(callSID)))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	// A retried leg can leave an old terminal entry next to the live one;
	// callers dedup on the live entry.
	for i := range entries {
		if !entries[i].Status.Terminal() {
			return &entries[i], nil
		}
	}
	return &entries[0], nil
}

func (s *DynamoDBStore) ListQueueEntries(ctx context.Context, ownerID string, statuses ...types.QueueStatus) ([]types.QueueEntry, error) {
	filter := expression.Name("OwnerID").Equal(expression.Value(ownerID))
	if len(statuses) > 0 {
		var ops []expression.OperandBuilder
		for _, st := range statuses[1:] {
			ops = append(ops, expression.Value(string(st)))
		}
		filter = filter.And(expression.Name("Status").In(expression.Value(string(statuses[0])), ops...))
	}
	return s.scanQueue(ctx, filter)
}

// ListStaleEntries relies on WaitStart being a fixed-width RFC3339 UTC
// string, so the lexicographic comparison below is also chronological.
func (s *DynamoDBStore) ListStaleEntries(ctx context.Context, before time.Time) ([]types.QueueEntry, error) {
	filter := expression.Name("Status").In(
		expression.Value(string(types.QueueWaiting)),
		expression.Value(string(types.QueueRinging))).
		And(expression.Name("WaitStart").LessThan(expression.Value(before.UTC().Format(time.RFC3339))))
	return s.scanQueue(ctx, filter)
}

func (s *DynamoDBStore) FindActiveEntryByPhone(ctx context.Context, ownerID, phone string, since time.Time) (*types.QueueEntry, error) {
	filter := expression.Name("OwnerID").Equal(expression.Value(ownerID)).
		And(expression.Name("CustomerPhone").Equal(expression.Value(phone))).
		And(expression.Name("Status").In(
			expression.Value(string(types.QueueWaiting)),
			expression.Value(string(types.QueueRinging)),
			expression.Value(string(types.QueueAnswered)))).
		And(expression.Name("WaitStart").GreaterThanEqual(expression.Value(since.UTC().Format(time.RFC3339))))
	entries, err := s.scanQueue(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return &entries[0], nil
}

func (s *DynamoDBStore) scanQueue(ctx context.Context, filter expression.ConditionBuilder) ([]types.QueueEntry, error) {
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}
	result, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(s.config.QueueTable),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue entries: %w", err)
	}
	var items []queueItem
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue entries: %w", err)
	}
	entries := make([]types.QueueEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, *queueFromItem(item))
	}
	return entries, nil
}

func (s *DynamoDBStore) AcceptQueueEntry(ctx context.Context, entryID, agentID string, answerTime time.Time) (*types.QueueEntry, error) {
	entry, err := s.GetQueueEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != types.QueueWaiting {
		return nil, ErrAlreadyTaken
	}

	// WaitStart is immutable, so computing the duration from the pre-read is
	// safe; the ConditionExpression is what guards the actual flip.
	waitDuration := int(answerTime.Sub(entry.WaitStart).Seconds())

	cond := expression.Name("Status").Equal(expression.Value(string(types.QueueWaiting)))
	update := expression.
		Set(expression.Name("Status"), expression.Value(string(types.QueueRinging))).
		Set(expression.Name("AssignedAgent"), expression.Value(agentID)).
		Set(expression.Name("AnswerTime"), expression.Value(answerTime.UTC().Format(time.RFC3339))).
		Set(expression.Name("WaitDuration"), expression.Value(waitDuration))

	if err := s.conditionalUpdate(ctx, entryID, cond, update); err != nil {
		var ccf *dbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrAlreadyTaken
		}
		return nil, err
	}

	entry.Status = types.QueueRinging
	entry.AssignedAgent = agentID
	t := answerTime
	entry.AnswerTime = &t
	entry.WaitDuration = waitDuration
	return entry, nil
}

func (s *DynamoDBStore) CompleteQueueEntry(ctx context.Context, entryID string, endTime time.Time, notes string) (*types.QueueEntry, error) {
	entry, err := s.GetQueueEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status.Terminal() {
		return entry, nil
	}

	callDuration := 0
	if entry.AnswerTime != nil {
		callDuration = int(endTime.Sub(*entry.AnswerTime).Seconds())
	}

	update := expression.
		Set(expression.Name("Status"), expression.Value(string(types.QueueCompleted))).
		Set(expression.Name("EndTime"), expression.Value(endTime.UTC().Format(time.RFC3339))).
		Set(expression.Name("CallDuration"), expression.Value(callDuration))
	if notes != "" {
		update = update.Set(expression.Name("Notes"), expression.Value(notes))
	}

	if err := s.conditionalUpdate(ctx, entryID, nonTerminalCond(), update); err != nil {
		var ccf *dbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			// Lost to a concurrent terminal transition; completion is
			// idempotent, so report the stored state.
			return s.GetQueueEntry(ctx, entryID)
		}
		return nil, err
	}

	entry.Status = types.QueueCompleted
	t := endTime
	entry.EndTime = &t
	entry.CallDuration = callDuration
	if notes != "" {
		entry.Notes = notes
	}
	return entry, nil
}

func (s *DynamoDBStore) MarkQueueEntry(ctx context.Context, entryID string, status types.QueueStatus, endTime time.Time) (*types.QueueEntry, error) {
	entry, err := s.GetQueueEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status.Terminal() {
		return entry, nil
	}

	update := expression.Set(expression.Name("Status"), expression.Value(string(status)))
	if status.Terminal() {
		update = update.Set(expression.Name("EndTime"), expression.Value(endTime.UTC().Format(time.RFC3339)))
	}

	if err := s.conditionalUpdate(ctx, entryID, nonTerminalCond(), update); err != nil {
		var ccf *dbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return s.GetQueueEntry(ctx, entryID)
		}
		return nil, err
	}

	entry.Status = status
	if status.Terminal() {
		t := endTime
		entry.EndTime = &t
	}
	return entry, nil
}

func (s *DynamoDBStore) conditionalUpdate(ctx context.Context, entryID string, cond expression.ConditionBuilder, update expression.UpdateBuilder) error {
	expr, err := expression.NewBuilder().WithCondition(cond).WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.config.QueueTable),
		Key:                       queueKey(entryID),
		ConditionExpression:       expr.Condition(),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return err
}

func nonTerminalCond() expression.ConditionBuilder {
	return expression.Name("Status").In(
		expression.Value(string(types.QueueWaiting)),
		expression.Value(string(types.QueueRinging)),
		expression.Value(string(types.QueueAnswered)))
}

func queueKey(entryID string) map[string]dbtypes.AttributeValue {
	return map[string]dbtypes.AttributeValue{
		"EntryID": &dbtypes.AttributeValueMemberS{Value: entryID},
	}
}

func (s *DynamoDBStore) PutAgent(ctx context.Context, agent *types.Agent) error {
	item, err := attributevalue.MarshalMap(agentItem{
		OwnerID:     agent.OwnerID,
		AgentID:     agent.ID,
		Name:        agent.Name,
		PhoneNumber: agent.PhoneNumber,
		TransferKey: agent.TransferKey,
		Email:       agent.Email,
		Department:  agent.Department,
		IsAvailable: agent.IsAvailable,
		CreatedAt:   agent.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal agent: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.AgentsTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save agent: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) GetAgentByKey(ctx context.Context, ownerID, transferKey string) (*types.Agent, error) {
	keyCond := expression.Key("OwnerID").Equal(expression.Value(ownerID))
	filter := expression.Name("TransferKey").Equal(expression.Value(transferKey))
	agents, err := s.queryAgents(ctx, keyCond, &filter)
	if err != nil {
		return nil, err
	}
	if len(agents) == 0 {
		return nil, ErrNotFound
	}
	return &agents[0], nil
}

func (s *DynamoDBStore) ListAgents(ctx context.Context, ownerID string) ([]types.Agent, error) {
	keyCond := expression.Key("OwnerID").Equal(expression.Value(ownerID))
	return s.queryAgents(ctx, keyCond, nil)
}

func (s *DynamoDBStore) ListAvailableAgents(ctx context.Context, ownerID string) ([]types.Agent, error) {
	keyCond := expression.Key("OwnerID").Equal(expression.Value(ownerID))
	filter := expression.Name("IsAvailable").Equal(expression.Value(true))
	return s.queryAgents(ctx, keyCond, &filter)
}

func (s *DynamoDBStore) DeleteAgent(ctx context.Context, ownerID, agentID string) error {
	key, err := attributevalue.MarshalMap(map[string]string{
		"OwnerID": ownerID,
		"AgentID": agentID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal agent key: %w", err)
	}
	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.config.AgentsTable),
		Key:       key,
	})
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) queryAgents(ctx context.Context, keyCond expression.KeyConditionBuilder, filter *expression.ConditionBuilder) ([]types.Agent, error) {
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if filter != nil {
		builder = builder.WithFilter(*filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.AgentsTable),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	var items []agentItem
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agents: %w", err)
	}
	agents := make([]types.Agent, 0, len(items))
	for _, item := range items {
		agents = append(agents, types.Agent{
			ID:          item.AgentID,
			OwnerID:     item.OwnerID,
			Name:        item.Name,
			PhoneNumber: item.PhoneNumber,
			TransferKey: item.TransferKey,
			Email:       item.Email,
			Department:  item.Department,
			IsAvailable: item.IsAvailable,
			CreatedAt:   parseTime(item.CreatedAt),
		})
	}
	return agents, nil
}

func callToItem(call *types.CallRecord) callItem {
	item := callItem{
		CallID:         call.ID,
		OwnerID:        call.OwnerID,
		CustomerPhone:  call.CustomerPhone,
		CustomerName:   call.CustomerName,
		Status:         string(call.Status),
		ProviderCallID: call.ProviderCallID,
		CallSID:        call.CallSID,
		Duration:       call.Duration,
		Recording:      call.Recording,
		Transcript:     call.Transcript,
		Summary:        call.Summary,
		Sentiment:      call.Sentiment,
		KeyPressed:     call.KeyPressed,
		TransferredTo:  call.TransferredTo,
		Cost:           call.Cost,
		Metadata:       call.Metadata,
		StartTime:      formatTimePtr(call.StartTime),
		EndTime:        formatTimePtr(call.EndTime),
		CreatedAt:      call.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, turn := range call.TranscriptTurns {
		item.TranscriptTurns = append(item.TranscriptTurns, transcriptTurnItem{
			Role:      turn.Role,
			Message:   turn.Message,
			Timestamp: turn.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	if call.Transfer != nil {
		item.Transfer = &transferDetailsItem{
			AgentName:    call.Transfer.AgentName,
			AgentPhone:   call.Transfer.AgentPhone,
			TransferTime: call.Transfer.TransferTime.UTC().Format(time.RFC3339),
			Status:       string(call.Transfer.Status),
			Duration:     call.Transfer.Duration,
		}
	}
	return item
}

func callFromItem(item callItem) *types.CallRecord {
	call := &types.CallRecord{
		ID:             item.CallID,
		OwnerID:        item.OwnerID,
		CustomerPhone:  item.CustomerPhone,
		CustomerName:   item.CustomerName,
		Status:         types.CallStatus(item.Status),
		ProviderCallID: item.ProviderCallID,
		CallSID:        item.CallSID,
		Duration:       item.Duration,
		Recording:      item.Recording,
		Transcript:     item.Transcript,
		Summary:        item.Summary,
		Sentiment:      item.Sentiment,
		KeyPressed:     item.KeyPressed,
		TransferredTo:  item.TransferredTo,
		Cost:           item.Cost,
		Metadata:       item.Metadata,
		StartTime:      parseTimePtr(item.StartTime),
		EndTime:        parseTimePtr(item.EndTime),
		CreatedAt:      parseTime(item.CreatedAt),
	}
	for _, turn := range item.TranscriptTurns {
		call.TranscriptTurns = append(call.TranscriptTurns, types.TranscriptTurn{
			Role:      turn.Role,
			Message:   turn.Message,
			Timestamp: parseTime(turn.Timestamp),
		})
	}
	if item.Transfer != nil {
		call.Transfer = &types.TransferDetails{
			AgentName:    item.Transfer.AgentName,
			AgentPhone:   item.Transfer.AgentPhone,
			TransferTime: parseTime(item.Transfer.TransferTime),
			Status:       types.TransferStatus(item.Transfer.Status),
			Duration:     item.Transfer.Duration,
		}
	}
	return call
}

func queueToItem(entry *types.QueueEntry) queueItem {
	return queueItem{
		EntryID:        entry.ID,
		OwnerID:        entry.OwnerID,
		CallID:         entry.CallID,
		ProviderCallID: entry.ProviderCallID,
		CallSID:        entry.CallSID,
		CustomerPhone:  entry.CustomerPhone,
		CustomerName:   entry.CustomerName,
		Source:         string(entry.Source),
		KeyPressed:     entry.KeyPressed,
		Status:         string(entry.Status),
		Priority:       entry.Priority,
		AssignedAgent:  entry.AssignedAgent,
		WaitStart:      entry.WaitStart.UTC().Format(time.RFC3339),
		AnswerTime:     formatTimePtr(entry.AnswerTime),
		EndTime:        formatTimePtr(entry.EndTime),
		WaitDuration:   entry.WaitDuration,
		CallDuration:   entry.CallDuration,
		Notes:          entry.Notes,
	}
}

func queueFromItem(item queueItem) *types.QueueEntry {
	return &types.QueueEntry{
		ID:             item.EntryID,
		OwnerID:        item.OwnerID,
		CallID:         item.CallID,
		ProviderCallID: item.ProviderCallID,
		CallSID:        item.CallSID,
		CustomerPhone:  item.CustomerPhone,
		CustomerName:   item.CustomerName,
		Source:         types.QueueSource(item.Source),
		KeyPressed:     item.KeyPressed,
		Status:         types.QueueStatus(item.Status),
		Priority:       item.Priority,
		AssignedAgent:  item.AssignedAgent,
		WaitStart:      parseTime(item.WaitStart),
		AnswerTime:     parseTimePtr(item.AnswerTime),
		EndTime:        parseTimePtr(item.EndTime),
		WaitDuration:   item.WaitDuration,
		CallDuration:   item.CallDuration,
		Notes:          item.Notes,
	}
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseTime(s)
	return &t
}
