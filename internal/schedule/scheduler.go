// Package schedule implements the continuation scheduler: a one-shot
// EventBridge rule that re-invokes the handler function with the original
// event plus continuation attributes after a delay.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/smithy-go"

	"github.com/Collaborne/custom-cloudformation-resources/internal/cfn"
	"github.com/Collaborne/custom-cloudformation-resources/internal/lifecycle"
	"github.com/Collaborne/custom-cloudformation-resources/internal/logging"
)

// sentinelCron is a trigger expression that can never fire. The rule is
// first created disabled with this expression so the invocation target can
// be attached before the rule is armed with the real trigger.
const sentinelCron = "cron(0 0 1 1 ? 1970)"

// targetID identifies the single invocation target attached to each rule.
const targetID = "continuation"

// EventBridgeAPI is the subset of the EventBridge client the scheduler uses.
type EventBridgeAPI interface {
	PutRule(ctx context.Context, params *eventbridge.PutRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutRuleOutput, error)
	PutTargets(ctx context.Context, params *eventbridge.PutTargetsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutTargetsOutput, error)
	RemoveTargets(ctx context.Context, params *eventbridge.RemoveTargetsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.RemoveTargetsOutput, error)
	DeleteRule(ctx context.Context, params *eventbridge.DeleteRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.DeleteRuleOutput, error)
}

// LambdaAPI is the subset of the Lambda client the scheduler uses to let the
// rule invoke the handler function.
type LambdaAPI interface {
	AddPermission(ctx context.Context, params *lambda.AddPermissionInput, optFns ...func(*lambda.Options)) (*lambda.AddPermissionOutput, error)
	RemovePermission(ctx context.Context, params *lambda.RemovePermissionInput, optFns ...func(*lambda.Options)) (*lambda.RemovePermissionOutput, error)
}

// Scheduler creates and removes one-shot re-invocation rules. Rule identity
// is deterministic per request, so retrying a schedule for the same request
// upserts rather than duplicates.
type Scheduler struct {
	events      EventBridgeAPI
	functions   LambdaAPI
	functionARN string
	roleARN     string
	now         func() time.Time
}

// New returns a Scheduler targeting functionARN. roleARN, when non-empty, is
// attached to created rules.
func New(events EventBridgeAPI, functions LambdaAPI, functionARN, roleARN string) *Scheduler {
	return &Scheduler{
		events:      events,
		functions:   functions,
		functionARN: functionARN,
		roleARN:     roleARN,
		now:         time.Now,
	}
}

// Schedule registers a one-shot re-delivery of req after c.Delay. The rule
// is created disabled with a sentinel past trigger, the target and its
// invocation permission are attached, and only then is the rule enabled with
// the real trigger, so the trigger can never fire before its target exists.
func (s *Scheduler) Schedule(ctx context.Context, req *cfn.Request, c *lifecycle.Continuation) error {
	name := RuleName(req)

	putRule := &eventbridge.PutRuleInput{
		Name:               aws.String(name),
		ScheduleExpression: aws.String(sentinelCron),
		State:              ebtypes.RuleStateDisabled,
		Description:        aws.String(fmt.Sprintf("continuation of request %s", req.RequestID)),
	}
	if s.roleARN != "" {
		putRule.RoleArn = aws.String(s.roleARN)
	}
	rule, err := s.events.PutRule(ctx, putRule)
	if err != nil {
		return fmt.Errorf("failed to create schedule rule %q: %w", name, err)
	}

	_, err = s.functions.AddPermission(ctx, &lambda.AddPermissionInput{
		FunctionName: aws.String(s.functionARN),
		StatementId:  aws.String(name),
		Action:       aws.String("lambda:InvokeFunction"),
		Principal:    aws.String("events.amazonaws.com"),
		SourceArn:    rule.RuleArn,
	})
	if err != nil && !isConflict(err) {
		return fmt.Errorf("failed to permit rule %q to invoke handler: %w", name, err)
	}

	event := *req
	event.ContinuationAttributes = c.Attributes
	input, err := json.Marshal(&event)
	if err != nil {
		return fmt.Errorf("failed to marshal continuation event: %w", err)
	}
	_, err = s.events.PutTargets(ctx, &eventbridge.PutTargetsInput{
		Rule: aws.String(name),
		Targets: []ebtypes.Target{{
			Id:    aws.String(targetID),
			Arn:   aws.String(s.functionARN),
			Input: aws.String(string(input)),
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to attach target to rule %q: %w", name, err)
	}

	fireAt := nextWholeMinute(s.now().Add(c.Delay))
	putRule.ScheduleExpression = aws.String(cronAt(fireAt))
	putRule.State = ebtypes.RuleStateEnabled
	if _, err := s.events.PutRule(ctx, putRule); err != nil {
		return fmt.Errorf("failed to enable schedule rule %q: %w", name, err)
	}

	logging.Info("scheduled continuation",
		"rule", name, "requestId", req.RequestID, "fireAt", fireAt)
	return nil
}

// Teardown removes the target, the invocation permission, and the rule that
// triggered req. Failures are logged and otherwise ignored: a stale disarmed
// rule is harmless, a duplicate invocation is impossible once the target is
// gone.
func (s *Scheduler) Teardown(ctx context.Context, req *cfn.Request) {
	name := RuleName(req)

	_, err := s.events.RemoveTargets(ctx, &eventbridge.RemoveTargetsInput{
		Rule: aws.String(name),
		Ids:  []string{targetID},
	})
	if err != nil && !isNotFound(err) {
		logging.Warn("failed to remove rule target", "rule", name, "error", err)
	}

	_, err = s.functions.RemovePermission(ctx, &lambda.RemovePermissionInput{
		FunctionName: aws.String(s.functionARN),
		StatementId:  aws.String(name),
	})
	if err != nil && !isNotFound(err) {
		logging.Warn("failed to remove invocation permission", "rule", name, "error", err)
	}

	_, err = s.events.DeleteRule(ctx, &eventbridge.DeleteRuleInput{
		Name: aws.String(name),
	})
	if err != nil && !isNotFound(err) {
		logging.Warn("failed to delete schedule rule", "rule", name, "error", err)
	}
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException"
}

func isConflict(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceConflictException"
}
