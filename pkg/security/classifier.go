// Package security evaluates submission content against access
// control rules and records the secure/open classification on the
// submission status log.
package security

import (
	"context"
	"fmt"
	"regexp"

	"github.com/biohubbc/biohub-platform/pkg/common/logger"
	"github.com/biohubbc/biohub-platform/pkg/occurrence"
	"github.com/biohubbc/biohub-platform/pkg/submission"
)

// Classification is the outcome of one classification pass.
type Classification struct {
	Secure       bool     `json:"secure"`
	MatchedRules []string `json:"matched_rules,omitempty"`
}

type compiledRule struct {
	rule    Rule
	pattern *regexp.Regexp
}

type Classifier struct {
	rules       []compiledRule
	occurrences *occurrence.Repository
	states      *submission.StateMachine
}

func NewClassifier(cfg RulesConfig, occurrences *occurrence.Repository, states *submission.StateMachine) (*Classifier, error) {
	compiled := make([]compiledRule, 0, len(cfg.Rules))
	for _, rule := range cfg.Rules {
		if !rule.Enabled {
			continue
		}
		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling security rule %q: %w", rule.Name, err)
		}
		compiled = append(compiled, compiledRule{rule: rule, pattern: pattern})
	}
	return &Classifier{
		rules:       compiled,
		occurrences: occurrences,
		states:      states,
	}, nil
}

// Classify evaluates the submission's scraped occurrences against the
// rule set and appends a SECURED status with the outcome. A secure
// result is data, not an error. The classification is evaluated per
// request and never cached: it can change after re-review.
func (c *Classifier) Classify(ctx context.Context, submissionID uint) (*Classification, error) {
	occurrences, err := c.occurrences.ListOccurrencesBySubmissionID(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	result := c.Evaluate(occurrences)

	outcome := "open"
	if result.Secure {
		outcome = "secure"
	}
	messages := []submission.Message{{
		Type: submission.MessageNotice,
		Text: fmt.Sprintf("submission classified %s", outcome),
	}}
	for _, name := range result.MatchedRules {
		messages = append(messages, submission.Message{
			Type: submission.MessageNotice,
			Text: fmt.Sprintf("matched security rule %s", name),
		})
	}

	if _, err := c.states.Transition(ctx, submissionID, submission.StatusSecured, messages...); err != nil {
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"submission_id": submissionID,
		"secure":        result.Secure,
	}).Info("security classification completed")

	return result, nil
}

// Evaluate runs the rules against a set of occurrences without
// touching persistence.
func (c *Classifier) Evaluate(occurrences []occurrence.Occurrence) *Classification {
	result := &Classification{}
	matched := make(map[string]struct{})

	for _, occ := range occurrences {
		for _, cr := range c.rules {
			if cr.pattern.MatchString(fieldValue(occ, cr.rule.Field)) {
				result.Secure = true
				if _, seen := matched[cr.rule.Name]; !seen {
					matched[cr.rule.Name] = struct{}{}
					result.MatchedRules = append(result.MatchedRules, cr.rule.Name)
				}
			}
		}
	}
	return result
}

func fieldValue(occ occurrence.Occurrence, field string) string {
	switch field {
	case "taxon_id":
		return occ.TaxonID
	case "vernacular_name":
		return occ.VernacularName
	case "life_stage":
		return occ.LifeStage
	case "event_date":
		return occ.EventDate
	default:
		return ""
	}
}

// CanAccess decides record/artifact visibility for a caller. Secure
// records are visible only to administrators and known service
// clients; open records are visible to everyone.
func CanAccess(secure bool, isAdmin bool, callerID string, serviceClients *ServiceClientConfig) bool {
	if !secure {
		return true
	}
	if isAdmin {
		return true
	}
	return serviceClients != nil && serviceClients.IsServiceClient(callerID)
}
